package handlers

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ekaya-inc/tabula/pkg/apperrors"
)

// cleanQuery holds the query parameters of POST /api/v1/data/{fid}/clean.
type cleanQuery struct {
	HandleDuplicates string `query:"handle_duplicates" validate:"omitempty,oneof=drop keep"`
	FillMissing      string `query:"fill_missing" validate:"omitempty,oneof=mean median zero"`
	Force            string `query:"force" validate:"omitempty,boolean"`
	Async            string `query:"async" validate:"omitempty,boolean"`
}

// plotQuery holds the query parameters of GET /api/v1/data/{fid}/plot. Type is declared
// first so an invalid plot type is reported before a missing column.
type plotQuery struct {
	Type   string `query:"type" validate:"required,oneof=histogram scatter"`
	Column string `query:"column" validate:"required"`
	X      string `query:"x"`
}

// queryValidator binds URL query values into tagged structs and validates them.
type queryValidator struct {
	validate *validator.Validate
}

func newQueryValidator() *queryValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report query parameter names in error messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("query"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &queryValidator{validate: v}
}

// Bind copies query values into the string fields of dst (a struct pointer) by their
// query tag and validates the result. Failures are apperrors.ErrInvalidParameter.
func (q *queryValidator) Bind(values url.Values, dst any) error {
	rv := reflect.ValueOf(dst).Elem()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		name := rt.Field(i).Tag.Get("query")
		if name == "" || rt.Field(i).Type.Kind() != reflect.String {
			continue
		}
		rv.Field(i).SetString(strings.TrimSpace(values.Get(name)))
	}

	err := q.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperrors.InvalidParameter("%s", describe(verrs[0]))
	}
	return apperrors.InvalidParameter("%s", err.Error())
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("invalid %s %q, valid: %s", fe.Field(), fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "boolean":
		return fmt.Sprintf("%s must be true or false", fe.Field())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}

// queryBool parses an optional boolean that has already passed validation.
func queryBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
