package dto

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// NormalizeCNIC 去掉 CNIC 中的连字符（35201-5678912-3 → 3520156789123）
func NormalizeCNIC(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "-", "")
}

// ValidateCNIC 13 位数字，允许带连字符
func ValidateCNIC(s string) bool {
	n := NormalizeCNIC(s)
	if len(n) != 13 {
		return false
	}
	for _, r := range n {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// RegisterValidators 注册自定义校验标签
func RegisterValidators(v *validator.Validate) error {
	return v.RegisterValidation("cnic", func(fl validator.FieldLevel) bool {
		return ValidateCNIC(fl.Field().String())
	})
}
