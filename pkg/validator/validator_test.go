package validator

import (
	"bytes"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderForm struct {
	ParentName string `json:"parentName" validate:"notblank,max=100"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"required,phone"`
	Method     string `json:"method" validate:"required,oneof=CREDIT_CARD CASH_ON_DELIVERY"`
}

func validForm() orderForm {
	return orderForm{ParentName: "Ayşe Yılmaz", Phone: "0532 123 45 67", Method: "CREDIT_CARD"}
}

func TestValidate_Success(t *testing.T) {
	assert.NoError(t, Validate(validForm()))
}

func TestValidate_BlankName(t *testing.T) {
	f := validForm()
	f.ParentName = "   "

	var valErr *ValidationError
	require.ErrorAs(t, Validate(f), &valErr)
	assert.Equal(t, "is required", valErr.Fields()["ParentName"])
}

func TestValidate_Phone(t *testing.T) {
	for _, phone := range []string{"+905321234567", "05321234567", "5321234567", "(0532) 123-45-67"} {
		f := validForm()
		f.Phone = phone
		assert.NoError(t, Validate(f), phone)
	}

	f := validForm()
	f.Phone = "12345"
	var valErr *ValidationError
	require.ErrorAs(t, Validate(f), &valErr)
	assert.Equal(t, "must be a valid mobile phone number", valErr.Fields()["Phone"])
}

func TestValidate_OneOf(t *testing.T) {
	f := validForm()
	f.Method = "BARTER"

	var valErr *ValidationError
	require.ErrorAs(t, Validate(f), &valErr)
	assert.Contains(t, valErr.Fields()["Method"], "must be one of")
	assert.Contains(t, valErr.Error(), "Method")
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "05321234567", NormalizePhone("0532 123-45-67"))
}

func TestDecodeAndValidate(t *testing.T) {
	body := `{"parentName":"Ali","phone":"05321234567","method":"CASH_ON_DELIVERY"}`
	r := httptest.NewRequest("POST", "/", bytes.NewBufferString(body))

	var f orderForm
	require.NoError(t, DecodeAndValidate(r, &f))
	assert.Equal(t, "Ali", f.ParentName)

	r = httptest.NewRequest("POST", "/", bytes.NewBufferString("{bad json"))
	err := DecodeAndValidate(r, &f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}
