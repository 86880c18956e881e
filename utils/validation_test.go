package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testIngredient struct {
	Name  string `json:"name" validate:"required"`
	Parts int    `json:"parts" validate:"gte=1"`
}

type testRequest struct {
	Title  string           `json:"title" validate:"required,max=10"`
	Items  []testIngredient `json:"items" validate:"required,min=1,dive"`
	Ignore string           `json:"-"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		s := testRequest{Title: "Latte", Items: []testIngredient{{Name: "milk", Parts: 3}}}
		assert.NoError(t, ValidateStruct(&s))
	})

	t.Run("missing required field uses json name", func(t *testing.T) {
		s := testRequest{Items: []testIngredient{{Name: "milk", Parts: 3}}}

		err := ValidateStruct(&s)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Equal(t, "title is required", fields["title"])
	})

	t.Run("too long", func(t *testing.T) {
		s := testRequest{Title: "Extra Large Latte", Items: []testIngredient{{Name: "milk", Parts: 3}}}

		fields := GetValidationFields(ValidateStruct(&s))
		assert.Equal(t, "title must be at most 10", fields["title"])
	})

	t.Run("empty list", func(t *testing.T) {
		s := testRequest{Title: "Latte", Items: []testIngredient{}}

		fields := GetValidationFields(ValidateStruct(&s))
		assert.Contains(t, fields, "items")
	})

	t.Run("nested element path", func(t *testing.T) {
		s := testRequest{Title: "Latte", Items: []testIngredient{{Name: "milk", Parts: 1}, {Name: "", Parts: 0}}}

		fields := GetValidationFields(ValidateStruct(&s))
		assert.Equal(t, "items[1].name is required", fields["items[1].name"])
		assert.Equal(t, "items[1].parts must be greater than or equal to 1", fields["items[1].parts"])
	})
}

func TestValidationErrorHelpers(t *testing.T) {
	err := &ValidationError{Message: "Validation failed", Fields: map[string]string{"title": "title is required"}}
	assert.Equal(t, "Validation failed", err.Error())

	assert.True(t, IsValidationError(err))
	assert.False(t, IsValidationError(assert.AnError))
	assert.Nil(t, GetValidationFields(assert.AnError))

	details := FieldsAsDetails(err.Fields)
	assert.Equal(t, "title is required", details["title"])
	assert.Nil(t, FieldsAsDetails(nil))
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Title string `json:"title"`
	}

	t.Run("valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/drinks", strings.NewReader(`{"title":"Mocha"}`))
		require.NoError(t, DecodeJSON(req, &dst))
		assert.Equal(t, "Mocha", dst.Title)
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/drinks", strings.NewReader(""))
		assert.ErrorIs(t, DecodeJSON(req, &dst), ErrEmptyBody)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/drinks", strings.NewReader(`{"title":`))
		err := DecodeJSON(req, &dst)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrEmptyBody)
	})
}

func TestParseID(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{input: "1", want: 1},
		{input: "42", want: 42},
		{input: "0", wantErr: true},
		{input: "-3", wantErr: true},
		{input: "abc", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			id, err := ParseID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}
