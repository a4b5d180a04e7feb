// Package validation comparte una instancia de go-playground/validator y
// traduce el primer campo invalido al error que ve el usuario.
package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Messages traduce "Campo.tag" al error de usuario.
type Messages map[string]error

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator devuelve la instancia compartida; validator cachea los metadatos por tipo.
func Validator() *validator.Validate {
	once.Do(func() {
		instance = validator.New()
		// maxbytes acota en bytes; max cuenta runas y bcrypt corta en 72 bytes.
		if err := instance.RegisterValidation("maxbytes", maxBytes); err != nil {
			panic(err)
		}
	})
	return instance
}

func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

// Struct valida s y devuelve el error mapeado del primer campo que falla.
// Los campos se revisan en el orden en que estan declarados.
func Struct(s any, msgs Messages) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	if mapped, ok := msgs[fe.Field()+"."+fe.Tag()]; ok {
		return mapped
	}
	return fmt.Errorf("%s is invalid", strings.ToLower(fe.Field()))
}
