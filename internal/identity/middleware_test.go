package identity_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/civicworks/fixline/internal/identity"
	"github.com/civicworks/fixline/internal/reports/model"
)

// staffGatedServer mounts one staff-only POST route and reports whether the
// guarded handler actually ran.
func staffGatedServer(t *testing.T, issuer *identity.SessionIssuer) (*gin.Engine, *bool) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handlerRan := false
	router := gin.New()
	router.POST("/staff-only", identity.RequireStaff(issuer), func(c *gin.Context) {
		handlerRan = true
		c.JSON(http.StatusCreated, gin.H{"actor": identity.ActorFromCtx(c).ID})
	})
	return router, &handlerRan
}

func TestRequireStaffRejectsReporterBeforeHandler(t *testing.T) {
	issuer := identity.NewSessionIssuer(testKey(t), "https://fixline.test", time.Hour)
	router, handlerRan := staffGatedServer(t, issuer)

	token, err := issuer.Issue(uuid.New(), "alice@example.com", "Alice", model.RoleReporter, "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/staff-only", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if *handlerRan {
		t.Error("guarded handler ran for a reporter token")
	}
	if !strings.Contains(w.Body.String(), "staff role required") {
		t.Errorf("body = %s, want staff role required", w.Body.String())
	}
}

func TestRequireStaffAdmitsStaffRoles(t *testing.T) {
	issuer := identity.NewSessionIssuer(testKey(t), "https://fixline.test", time.Hour)

	for _, role := range []model.Role{model.RoleMaintainer, model.RoleFieldHead} {
		router, handlerRan := staffGatedServer(t, issuer)

		dept := model.Department("")
		if role == model.RoleFieldHead {
			dept = model.DeptRoad
		}
		token, err := issuer.Issue(uuid.New(), "staff@example.com", "Staff", role, dept)
		if err != nil {
			t.Fatalf("Issue(%s): %v", role, err)
		}

		req := httptest.NewRequest(http.MethodPost, "/staff-only", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Errorf("%s: status = %d, want 201: %s", role, w.Code, w.Body.String())
		}
		if !*handlerRan {
			t.Errorf("%s: guarded handler did not run", role)
		}
	}
}

func TestRequireStaffRejectsMissingToken(t *testing.T) {
	issuer := identity.NewSessionIssuer(testKey(t), "https://fixline.test", time.Hour)
	router, handlerRan := staffGatedServer(t, issuer)

	req := httptest.NewRequest(http.MethodPost, "/staff-only", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if *handlerRan {
		t.Error("guarded handler ran without a token")
	}
}

func TestRequireActorStillReachesHandler(t *testing.T) {
	issuer := identity.NewSessionIssuer(testKey(t), "https://fixline.test", time.Hour)
	gin.SetMode(gin.TestMode)

	userID := uuid.New()
	token, err := issuer.Issue(userID, "alice@example.com", "Alice", model.RoleReporter, "")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	router := gin.New()
	router.GET("/mine", identity.RequireActor(issuer), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": identity.ActorFromCtx(c).ID})
	})

	req := httptest.NewRequest(http.MethodGet, "/mine", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), userID.String()) {
		t.Errorf("body = %s, want actor id %s", w.Body.String(), userID)
	}
}
