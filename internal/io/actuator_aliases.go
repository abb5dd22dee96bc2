package io

import "strings"

const (
	XORSendOutputActuatorAliasName    = "xor_SendOutput"
	CartPoleForceActuatorAliasName    = "cart_pole_SendOutput"
	GeneralPredictorActuatorAliasName = "general_predictor"
)

var actuatorAliasToCanonical = map[string]string{
	strings.ToLower(XORSendOutputActuatorAliasName):    XOROutputActuatorName,
	strings.ToLower(CartPoleForceActuatorAliasName):    CartPoleForceActuatorName,
	strings.ToLower(GeneralPredictorActuatorAliasName): ScalarOutputActuatorName,
}

func CanonicalActuatorName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	if canonical, ok := actuatorAliasToCanonical[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}
