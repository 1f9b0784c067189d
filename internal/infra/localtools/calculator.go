package localtools

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

const CalculatorHandlerName = "calculator"

var ErrDivisionByZero = errors.New("division by zero")

// Calculate applies a basic arithmetic operation.
func Calculate(operation string, x, y float64) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(operation)) {
	case "add":
		return x + y, nil
	case "subtract":
		return x - y, nil
	case "multiply":
		return x * y, nil
	case "divide":
		if y == 0 {
			return 0, ErrDivisionByZero
		}
		return x / y, nil
	default:
		return 0, fmt.Errorf("unsupported operation %q", operation)
	}
}

// Calculator parameter names.
const (
	ParamFirstNumber  = "first_number"
	ParamSecondNumber = "second_number"
	ParamOperation    = "operation"
)

// Calculator is the local handler behind "local:calculator".
func Calculator(ctx context.Context, args map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	op, _ := args[ParamOperation].(string)
	x, okX := toFloat(args[ParamFirstNumber])
	y, okY := toFloat(args[ParamSecondNumber])
	if !okX || !okY {
		return nil, fmt.Errorf("%s and %s must be numbers", ParamFirstNumber, ParamSecondNumber)
	}
	result, err := Calculate(op, x, y)
	if err != nil {
		return nil, err
	}
	return Normalize(result), nil
}

// Normalize reports integral results as int64.
func Normalize(v float64) any {
	if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
		return int64(v)
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
