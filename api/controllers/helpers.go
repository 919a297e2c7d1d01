package controllers

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/smes-pos/smes-backend/pkg/errors"
)

func parseUUID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field).WithDetails(map[string]any{"field": field})
	}
	return id, nil
}
