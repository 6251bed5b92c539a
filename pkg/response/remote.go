package response

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/assoc-site/backend/pkg/database"
	"github.com/assoc-site/backend/pkg/remote"
)

// Remote sends a classified remote-store error with its code and, for setup
// problems, the remediation an operator needs.
func Remote(c *gin.Context, err error) {
	code := remote.CodeOf(err)
	var table string
	var re *remote.Error
	if errors.As(err, &re) {
		table = re.Table
	}
	c.JSON(StatusFor(code), Body{
		Success:     false,
		Error:       err.Error(),
		Code:        string(code),
		Remediation: Remediation(code, table),
	})
}

// StatusFor maps a remote error code to an HTTP status.
func StatusFor(code remote.Code) int {
	switch code {
	case remote.CodeNotFound:
		return http.StatusNotFound
	case remote.CodeDuplicateEmail, remote.CodeDuplicateKey:
		return http.StatusConflict
	case remote.CodeRLSPolicyRequired:
		return http.StatusForbidden
	case remote.CodeTableNotFound, remote.CodeBucketNotFound:
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

// Remediation returns operator guidance for setup-class failures.
func Remediation(code remote.Code, table string) string {
	switch code {
	case remote.CodeTableNotFound:
		if sql := database.SetupSQL(table); sql != "" {
			return "Create the table with the following SQL (or set DB_AUTO_MIGRATE=true):\n" + sql
		}
		return "Run the database migrations (DB_AUTO_MIGRATE=true)."
	case remote.CodeBucketNotFound:
		return fmt.Sprintf("Create the S3 bucket %q and allow public read on its objects.", table)
	case remote.CodeRLSPolicyRequired:
		return fmt.Sprintf("Grant the service credentials write access to %q (table grants or bucket policy).", table)
	case remote.CodeDuplicateEmail:
		return "An application with this email is already pending review."
	}
	return ""
}
