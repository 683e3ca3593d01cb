package outcome

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	tests := []struct {
		kind   Kind
		status int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindBotVerification, http.StatusBadRequest},
		{KindConfiguration, http.StatusInternalServerError},
		{KindConnectivity, http.StatusInternalServerError},
		{KindAuthentication, http.StatusInternalServerError},
		{KindAddress, http.StatusInternalServerError},
		{KindDelivery, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.kind.Status())
			assert.NotEmpty(t, tt.kind.SafeDetail())
		})
	}
}

func TestOperatorKindsShareGenericDetail(t *testing.T) {
	generic := KindDelivery.SafeDetail()
	for _, k := range []Kind{KindConfiguration, KindConnectivity, KindAuthentication, KindAddress} {
		assert.Equal(t, generic, k.SafeDetail(), "kind %s must not reveal its cause", k)
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("send: %w", New(KindAddress, "smtp.rcpt", errors.New("550 no such user")))
	assert.Equal(t, KindAddress, KindOf(wrapped))
	assert.Equal(t, KindDelivery, KindOf(errors.New("boom")))
	assert.Equal(t, KindDelivery, KindOf(&Error{Kind: "bogus"}))
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrap: %w", New(KindAuthentication, "smtp.auth", errors.New("535")))
	assert.True(t, errors.Is(err, &Error{Kind: KindAuthentication}))
	assert.False(t, errors.Is(err, &Error{Kind: KindAddress}))
}

func TestFailureNeverLeaksCause(t *testing.T) {
	err := &Error{Kind: KindAuthentication, Op: "smtp.auth", Code: 535, Err: errors.New("5.7.8 Username and Password not accepted for user@example.com")}

	resp := Failure(err)

	assert.False(t, resp.Success)
	assert.Equal(t, KindAuthentication, resp.Error)
	assert.NotContains(t, resp.Details, "535")
	assert.NotContains(t, resp.Details, "user@example.com")
}

func TestErrorString(t *testing.T) {
	err := &Error{Kind: KindAddress, Op: "smtp.rcpt", Code: 550, Err: errors.New("mailbox unavailable")}
	assert.Equal(t, "address (smtp.rcpt) [550]: mailbox unavailable", err.Error())
}
