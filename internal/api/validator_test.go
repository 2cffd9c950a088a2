package api

import (
	"errors"
	"net/http"
	"testing"

	"agripal/internal/types"
)

type validatedRequest struct {
	Name   string `validate:"required"`
	Action string `validate:"omitempty,oneof=ON OFF"`
}

func TestValidateStruct_Passes(t *testing.T) {
	v := NewValidator(quietLogger())

	if err := v.ValidateStruct(validatedRequest{Name: "pump-1", Action: "ON"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStruct_CollectsFieldDetails(t *testing.T) {
	v := NewValidator(quietLogger())

	err := v.ValidateStruct(validatedRequest{Action: "MAYBE"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.HTTPStatus() != http.StatusBadRequest {
		t.Errorf("expected 400 mapping, got %d", appErr.HTTPStatus())
	}
	if len(appErr.Details) != 2 {
		t.Fatalf("expected 2 field details, got %v", appErr.Details)
	}
	if _, ok := appErr.Details["name"]; !ok {
		t.Errorf("expected name detail, got %v", appErr.Details)
	}
	if got, ok := appErr.Details["action"]; !ok || got != "must be one of: ON OFF" {
		t.Errorf("unexpected action detail: %v", got)
	}
}

func TestValidateStruct_NonStructInput(t *testing.T) {
	v := NewValidator(quietLogger())

	err := v.ValidateStruct("not a struct")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != types.ErrCodeInternalUnexpected {
		t.Errorf("expected internal code, got %s", appErr.Code)
	}
}
