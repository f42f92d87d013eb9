package model

import (
	"math"
)

// EntityModel is one entity's trained generalized linear model.
//
// Implementations are immutable; WithCoefficients returns a new model
// of the same kind.
type EntityModel interface {
	// Coefficients returns the model's trained parameters.
	Coefficients() Coefficients
	// WithCoefficients returns a model of the same kind carrying c.
	WithCoefficients(c Coefficients) EntityModel
	// Score returns the raw linear score for a feature vector.
	Score(features []float32) float32
	// PredictMean applies the model's link function to the raw score
	// plus offset.
	PredictMean(features []float32, offset float32) float32
}

// Constructor turns solved coefficients into an entity model. The
// optimization problem carries one so the solver stays agnostic of the
// model kind.
type Constructor func(c Coefficients) EntityModel

// LinearRegression is an entity model with the identity link.
type LinearRegression struct {
	coeffs Coefficients
}

var _ EntityModel = (*LinearRegression)(nil)

// NewLinearRegression creates a linear regression entity model.
func NewLinearRegression(c Coefficients) *LinearRegression {
	return &LinearRegression{coeffs: c}
}

// Coefficients returns the trained parameters.
func (m *LinearRegression) Coefficients() Coefficients {
	return m.coeffs
}

// WithCoefficients returns a new linear regression model carrying c.
func (m *LinearRegression) WithCoefficients(c Coefficients) EntityModel {
	return NewLinearRegression(c)
}

// Score returns the raw linear score.
func (m *LinearRegression) Score(features []float32) float32 {
	return m.coeffs.Score(features)
}

// PredictMean returns score + offset (identity link).
func (m *LinearRegression) PredictMean(features []float32, offset float32) float32 {
	return m.Score(features) + offset
}

// LogisticRegression is an entity model with the logit link.
type LogisticRegression struct {
	coeffs Coefficients
}

var _ EntityModel = (*LogisticRegression)(nil)

// NewLogisticRegression creates a logistic regression entity model.
func NewLogisticRegression(c Coefficients) *LogisticRegression {
	return &LogisticRegression{coeffs: c}
}

// Coefficients returns the trained parameters.
func (m *LogisticRegression) Coefficients() Coefficients {
	return m.coeffs
}

// WithCoefficients returns a new logistic regression model carrying c.
func (m *LogisticRegression) WithCoefficients(c Coefficients) EntityModel {
	return NewLogisticRegression(c)
}

// Score returns the raw linear score. No sigmoid is applied; scoring
// composes raw scores across coordinates and links are applied at the
// very end by the caller.
func (m *LogisticRegression) Score(features []float32) float32 {
	return m.coeffs.Score(features)
}

// PredictMean returns sigmoid(score + offset).
func (m *LogisticRegression) PredictMean(features []float32, offset float32) float32 {
	return Sigmoid(m.Score(features) + offset)
}

// Sigmoid is the logistic function.
func Sigmoid(x float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(x))))
}
