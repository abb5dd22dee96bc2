package io

import (
	"context"
	"fmt"
	"sync"
)

const (
	ScalarInputSensorName      = "scalar_input"
	ScalarOutputActuatorName   = "scalar_output"
	XORInputLeftSensorName     = "xor_input_left"
	XORInputRightSensorName    = "xor_input_right"
	XOROutputActuatorName      = "xor_output"
	CartPolePositionSensorName = "cart_pole_position"
	CartPoleVelocitySensorName = "cart_pole_velocity"
	CartPoleForceActuatorName  = "cart_pole_force"
)

type ScalarInputSensor struct {
	mu    sync.RWMutex
	value float64
}

func NewScalarInputSensor(initial float64) *ScalarInputSensor {
	return &ScalarInputSensor{value: initial}
}

func (s *ScalarInputSensor) Name() string {
	return ScalarInputSensorName
}

func (s *ScalarInputSensor) Read(_ context.Context) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return []float64{s.value}, nil
}

func (s *ScalarInputSensor) Set(value float64) {
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
}

type ScalarOutputActuator struct {
	mu   sync.RWMutex
	last []float64
}

func NewScalarOutputActuator() *ScalarOutputActuator {
	return &ScalarOutputActuator{}
}

func (a *ScalarOutputActuator) Name() string {
	return ScalarOutputActuatorName
}

func (a *ScalarOutputActuator) Write(_ context.Context, values []float64) error {
	a.mu.Lock()
	a.last = append([]float64(nil), values...)
	a.mu.Unlock()
	return nil
}

func (a *ScalarOutputActuator) Last() []float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]float64(nil), a.last...)
}

func init() {
	initializeDefaultComponents()
}

func registerScalarInputSensor(name, scape string) {
	err := RegisterSensorWithSpec(SensorSpec{
		Name:          name,
		Factory:       func() Sensor { return NewScalarInputSensor(0) },
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
		Compatible: func(candidate string) error {
			if candidate != scape {
				return fmt.Errorf("unsupported scape: %s", candidate)
			}
			return nil
		},
	})
	if err != nil {
		panic(err)
	}
}

func registerScalarOutputActuator(name, scape string) {
	err := RegisterActuatorWithSpec(ActuatorSpec{
		Name:          name,
		Factory:       func() Actuator { return NewScalarOutputActuator() },
		SchemaVersion: SupportedSchemaVersion,
		CodecVersion:  SupportedCodecVersion,
		Compatible: func(candidate string) error {
			if candidate != scape {
				return fmt.Errorf("unsupported scape: %s", candidate)
			}
			return nil
		},
	})
	if err != nil {
		panic(err)
	}
}

func initializeDefaultComponents() {
	registerScalarInputSensor(ScalarInputSensorName, "regression-mimic")
	registerScalarInputSensor(CartPolePositionSensorName, "cart-pole-lite")
	registerScalarInputSensor(CartPoleVelocitySensorName, "cart-pole-lite")
	registerScalarInputSensor(XORInputLeftSensorName, "xor")
	registerScalarInputSensor(XORInputRightSensorName, "xor")

	registerScalarOutputActuator(ScalarOutputActuatorName, "regression-mimic")
	registerScalarOutputActuator(XOROutputActuatorName, "xor")
	registerScalarOutputActuator(CartPoleForceActuatorName, "cart-pole-lite")
}
