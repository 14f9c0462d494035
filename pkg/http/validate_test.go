package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listQuery struct {
	Limit  int    `query:"limit" default:"20" validate:"min=1,max=100"`
	Order  string `query:"order" json:"order_by" validate:"omitempty,oneof=asc desc"`
	Strict bool   `query:"strict" default:"true"`
}

func queryContext(target string) echo.Context {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestReadAndValidateQueryDefaults(t *testing.T) {
	q := &listQuery{}
	require.Nil(t, ReadAndValidateQuery(queryContext("/?strict=false"), q))
	assert.Equal(t, 20, q.Limit)
	assert.False(t, q.Strict, "explicit false survives the defaults")
}

func TestReadAndValidateQueryErrors(t *testing.T) {
	errs := ReadAndValidateQuery(queryContext("/?limit=500&order=sideways"), &listQuery{})
	require.Len(t, errs, 2)

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}
	require.Contains(t, byField, "limit")
	assert.Equal(t, "ERR_MAX", byField["limit"].Code)
	assert.Equal(t, "limit must be at most 100", byField["limit"].Message)

	require.Contains(t, byField, "order")
	assert.Equal(t, "ERR_ONEOF", byField["order"].Code)
	assert.Equal(t, []string{"asc", "desc"}, byField["order"].Params["options"])

	appErr := ValidationAppError(errs)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
}

func TestReadAndValidateQueryBindError(t *testing.T) {
	errs := ReadAndValidateQuery(queryContext("/?limit=lots"), &listQuery{})
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_UNKNOWN", errs[0].Code)
}
