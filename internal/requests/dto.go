package requests

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/angelmondragon/relief-dispatch/pkg/enums"
	pkgerrors "github.com/angelmondragon/relief-dispatch/pkg/errors"
)

// SubmitInput is a victim's request as received at intake.
type SubmitInput struct {
	ID                  *uuid.UUID           `json:"id,omitempty"`
	Description         string               `json:"description" validate:"max=4000"`
	Language            string               `json:"language" validate:"omitempty,max=8"`
	Lat                 *float64             `json:"lat" validate:"required,min=-90,max=90"`
	Lng                 *float64             `json:"lng" validate:"required,min=-180,max=180"`
	Needs               map[string]NeedInput `json:"needs" validate:"omitempty,dive,keys,need_category,endkeys"`
	Beneficiaries       BeneficiariesInput   `json:"beneficiaries"`
	Medical             MedicalInput         `json:"medical"`
	Device              DeviceInput          `json:"device"`
	SelfDeclaredUrgency string               `json:"self_declared_urgency" validate:"omitempty,priority"`
}

// NeedInput is one requested category.
type NeedInput struct {
	Required bool `json:"required"`
	Quantity int  `json:"quantity" validate:"min=0"`
}

// BeneficiariesInput counts the people covered by the request.
type BeneficiariesInput struct {
	Adults   int `json:"adults" validate:"min=0"`
	Children int `json:"children" validate:"min=0"`
	Elderly  int `json:"elderly" validate:"min=0"`
	Infants  int `json:"infants" validate:"min=0"`
}

type MedicalInput struct {
	Conditions []string `json:"conditions" validate:"max=20,dive,max=200"`
	Pregnant   bool     `json:"pregnant"`
}

type DeviceInput struct {
	BatteryLevel   *int   `json:"battery_level" validate:"omitempty,min=0,max=100"`
	SignalStrength string `json:"signal_strength" validate:"max=32"`
}

// MessageInput is a follow-up text on an existing request.
type MessageInput struct {
	Text string `json:"text" validate:"required,max=2000"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	_ = v.RegisterValidation("need_category", func(fl validator.FieldLevel) bool {
		return enums.NeedCategory(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return enums.Priority(fl.Field().String()).IsValid()
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		in := sl.Current().Interface().(SubmitInput)
		if in.Lat != nil && in.Lng != nil && *in.Lat == 0 && *in.Lng == 0 {
			sl.ReportError(in.Lat, "lat", "Lat", "nonzero_location", "")
		}
	}, SubmitInput{})
	return v
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errs, ok := err.(validator.ValidationErrors); ok {
		fieldErrs = errs
	} else {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := map[string]string{}
	for _, fe := range fieldErrs {
		details[fieldPath(fe)] = validationMessage(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "need_category":
		return "unknown need category"
	case "priority":
		return "unknown priority"
	case "nonzero_location":
		return "location must not be 0,0"
	}
	return "is invalid"
}
