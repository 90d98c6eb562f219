package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MinInputs is the smallest number of operands any calculation accepts.
const MinInputs = 2

var (
	ErrUnsupportedType = errors.New("unsupported calculation type")
	ErrInvalidInputs   = errors.New("at least two finite numbers are required")
	ErrDivisionByZero  = errors.New("cannot divide by zero")
	ErrResultOverflow  = errors.New("result is not a finite number")
)

// CalculationType is the discriminator selecting how inputs are reduced.
type CalculationType string

const (
	Addition       CalculationType = "addition"
	Subtraction    CalculationType = "subtraction"
	Multiplication CalculationType = "multiplication"
	Division       CalculationType = "division"
)

// CalculationTypes lists every supported discriminator.
var CalculationTypes = []CalculationType{Addition, Subtraction, Multiplication, Division}

// ParseCalculationType matches s case-insensitively against the supported types.
func ParseCalculationType(s string) (CalculationType, error) {
	t := CalculationType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case Addition, Subtraction, Multiplication, Division:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedType, s)
}

// Calculation is a stored arithmetic operation owned by a user.
type Calculation struct {
	ID        string          `gorm:"primaryKey;size:36" json:"id"`
	UserID    string          `gorm:"size:36;not null;index" json:"user_id"`
	User      *User           `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Type      CalculationType `gorm:"size:50;not null;index" json:"type"`
	Inputs    []float64       `gorm:"serializer:json;not null" json:"inputs"`
	Result    *float64        `json:"result"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (c *Calculation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// NewCalculation builds a calculation of the given type for ownerID and
// computes its result.
func NewCalculation(calcType string, ownerID string, inputs []float64) (*Calculation, error) {
	t, err := ParseCalculationType(calcType)
	if err != nil {
		return nil, err
	}
	c := &Calculation{
		UserID: ownerID,
		Type:   t,
		Inputs: append([]float64(nil), inputs...),
	}
	if err := c.Recompute(); err != nil {
		return nil, err
	}
	return c, nil
}

// SetInputs replaces the operands and recomputes the result. On error the
// calculation is left unchanged.
func (c *Calculation) SetInputs(inputs []float64) error {
	result, err := Evaluate(c.Type, inputs)
	if err != nil {
		return err
	}
	c.Inputs = append([]float64(nil), inputs...)
	c.Result = &result
	return nil
}

// Recompute stores Evaluate's output in Result.
func (c *Calculation) Recompute() error {
	result, err := c.Evaluate()
	if err != nil {
		return err
	}
	c.Result = &result
	return nil
}

// Evaluate returns the result for the current type and inputs.
func (c *Calculation) Evaluate() (float64, error) {
	return Evaluate(c.Type, c.Inputs)
}

// Evaluate reduces inputs according to t. Subtraction and division are left
// folds starting from inputs[0].
func Evaluate(t CalculationType, inputs []float64) (float64, error) {
	if len(inputs) < MinInputs {
		return 0, ErrInvalidInputs
	}
	for _, v := range inputs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, ErrInvalidInputs
		}
	}

	result := inputs[0]
	switch t {
	case Addition:
		for _, v := range inputs[1:] {
			result += v
		}
	case Subtraction:
		for _, v := range inputs[1:] {
			result -= v
		}
	case Multiplication:
		for _, v := range inputs[1:] {
			result *= v
		}
	case Division:
		for _, v := range inputs[1:] {
			if v == 0 {
				return 0, ErrDivisionByZero
			}
			result /= v
		}
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedType, string(t))
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, ErrResultOverflow
	}
	return result, nil
}
