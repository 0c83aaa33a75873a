package service

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/noah-isme/ci-results-api/internal/models"
	appErrors "github.com/noah-isme/ci-results-api/pkg/errors"
)

// decodePayload strictly decodes raw into dest and validates it.
// Malformed JSON is a 400; unknown fields and failed validation are 422.
func decodePayload(v *validator.Validate, raw []byte, dest interface{}) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return appErrors.Validationf("No JSON data found in the request")
	}
	if err := models.DecodeStrictBytes(raw, dest); err != nil {
		if errors.Is(err, models.ErrUnknownField) {
			return appErrors.Wrap(err, appErrors.ErrUnprocessable.Code, appErrors.ErrUnprocessable.Status, err.Error())
		}
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Unable to parse JSON data")
	}
	if err := v.Struct(dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnprocessable.Code, appErrors.ErrUnprocessable.Status, validationMessage(err))
	}
	return nil
}

// payloadKeys returns the top-level keys of a payload decodePayload accepted.
func payloadKeys(raw []byte) (map[string]struct{}, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "Unable to parse JSON data")
	}
	keys := make(map[string]struct{}, len(fields))
	for k := range fields {
		keys[k] = struct{}{}
	}
	return keys, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return appErrors.ErrUnprocessable.Message
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return "Invalid or missing fields: " + strings.Join(fields, ", ")
}

// parseID converts a path identifier into an object id.
func parseID(raw string) (primitive.ObjectID, error) {
	if strings.TrimSpace(raw) == "" {
		return primitive.NilObjectID, appErrors.ErrMissingID
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, appErrors.Validationf("Wrong ID value: %s", raw)
	}
	return id, nil
}
