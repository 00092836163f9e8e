package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// deleteAccount removes the account at the identity provider first; local
// rows are cleaned up best-effort afterwards so a partial failure never
// leaves a live account pointing at deleted data.
func (a *App) deleteAccount(c *gin.Context) {
	userID, ok := authUserIDFromContext(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := a.identity.DeleteUser(c.Request.Context(), userID); err != nil {
		log.Printf("identity deletion failed user_id=%s err=%v", userID, err)
		writeError(c, http.StatusInternalServerError, "Failed to delete account")
		return
	}

	if err := a.deleteUserData(c.Request.Context(), userID); err != nil {
		log.Printf("local cleanup failed user_id=%s err=%v", userID, err)
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
