package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chefkeenan/Lume/internal/domain"
)

func TestAdminProducts_Create(t *testing.T) {
	cat := &stubCatalog{}
	rec := serve(t, Services{Catalog: cat}, http.MethodPost, "/admin/products", "",
		`{"name":"Yoga Mat","stock":12,"price":"150000","valid_until":"2026-12-31T23:59:59+07:00"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Yoga Mat", cat.createdProduct.Name)
	assert.True(t, decimal.NewFromInt(150000).Equal(cat.createdProduct.Price))
	assert.Nil(t, cat.createdProduct.ValidFrom)
	require.NotNil(t, cat.createdProduct.ValidUntil)
	assert.Equal(t, 2026, cat.createdProduct.ValidUntil.Year())

	var resp productResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, 12, resp.Stock)
	assert.True(t, resp.InStock)
}

func TestAdminProducts_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"bad timestamp", `{"name":"Mat","stock":1,"price":"1","valid_from":"tomorrow"}`, codeValidationFailed},
		{"missing name", `{"stock":1,"price":"1"}`, codeMissingRequiredField},
		{"bad price", `{"name":"Mat","stock":1,"price":"abc"}`, codeInvalidRequestBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, Services{Catalog: &stubCatalog{}}, http.MethodPost, "/admin/products", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestAdminSessions_CreateAndList(t *testing.T) {
	starts := time.Date(2026, 11, 2, 7, 0, 0, 0, time.UTC)
	cat := &stubCatalog{sessions: []domain.Session{
		{ID: "s1", Title: "Pilates Core", Category: domain.CategoryWeekly, Days: []int{0, 2}, CapacityMax: 10, CapacityCurrent: 4, Available: true, StartsAt: &starts},
		{ID: "s2", Title: "Morning Flow", Category: domain.CategoryDaily, CapacityMax: 8, Available: true},
	}}
	svc := Services{Catalog: cat, Remaining: stubRemaining{"s1": 6}}

	rec := serve(t, svc, http.MethodPost, "/admin/sessions", "",
		`{"title":"Pilates Core","category":"weekly","days":[0,2],"capacity_max":10,"price":75000,"starts_at":"2026-11-02T07:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.CategoryWeekly, cat.createdSession.Category)
	assert.Equal(t, []int{0, 2}, cat.createdSession.Days)
	require.NotNil(t, cat.createdSession.StartsAt)
	assert.True(t, starts.Equal(*cat.createdSession.StartsAt))

	rec = serve(t, svc, http.MethodGet, "/admin/sessions", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []sessionResponse
	decodeBody(t, rec, &list)
	require.Len(t, list, 2)
	assert.Equal(t, []string{"Monday", "Wednesday"}, list[0].DayNames)
	require.NotNil(t, list[0].Remaining)
	assert.Equal(t, 6, *list[0].Remaining)
	assert.Nil(t, list[1].Remaining)
	assert.Equal(t, []int{}, list[1].Days)
}

func TestAdminProducts_MethodNotAllowed(t *testing.T) {
	rec := serve(t, Services{Catalog: &stubCatalog{}}, http.MethodDelete, "/admin/products", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
