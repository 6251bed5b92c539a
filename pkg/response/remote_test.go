package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assoc-site/backend/pkg/remote"
)

func TestRemote_TableNotFoundCarriesSetupSQL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Remote(c, &remote.Error{Code: remote.CodeTableNotFound, Message: "relation does not exist", Table: "contact_forms"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var body Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "TABLE_NOT_FOUND", body.Code)
	assert.Contains(t, body.Remediation, "CREATE TABLE IF NOT EXISTS contact_forms")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, StatusFor(remote.CodeDuplicateEmail))
	assert.Equal(t, http.StatusNotFound, StatusFor(remote.CodeNotFound))
	assert.Equal(t, http.StatusForbidden, StatusFor(remote.CodeRLSPolicyRequired))
	assert.Equal(t, http.StatusServiceUnavailable, StatusFor(remote.CodeBucketNotFound))
	assert.Equal(t, http.StatusBadGateway, StatusFor(remote.CodeUnknown))
}

func TestRemediation_Bucket(t *testing.T) {
	assert.Contains(t, Remediation(remote.CodeBucketNotFound, "assoc-articles"), `"assoc-articles"`)
	assert.Empty(t, Remediation(remote.CodeUnknown, "x"))
}
