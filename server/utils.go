// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/DataDog/datadog-hoptrace/log"
	"github.com/DataDog/datadog-hoptrace/result"
	"github.com/DataDog/datadog-hoptrace/traceroute"
)

// Helper functions for parsing query parameters

func getStringParam(query map[string][]string, key string, defaultValue string) string {
	if values, ok := query[key]; ok && len(values) > 0 {
		return values[0]
	}
	return defaultValue
}

func getIntParam(query map[string][]string, key string, defaultValue int) (int, error) {
	values, ok := query[key]
	if !ok || len(values) == 0 {
		return defaultValue, nil
	}
	val, err := strconv.Atoi(values[0])
	if err != nil {
		return 0, &traceroute.InvalidParamsError{Field: key, Err: err}
	}
	return val, nil
}

func getBoolParam(query map[string][]string, key string, defaultValue bool) (bool, error) {
	values, ok := query[key]
	if !ok || len(values) == 0 {
		return defaultValue, nil
	}
	val, err := strconv.ParseBool(values[0])
	if err != nil {
		return false, &traceroute.InvalidParamsError{Field: key, Err: err}
	}
	return val, nil
}

func statusForCode(code traceroute.ErrorCode) int {
	switch code {
	case traceroute.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case traceroute.ErrCodeTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeTraceError(w, err, nil)
}

// writeTraceError is writeError carrying the hops of a trace that failed mid-way
func writeTraceError(w http.ResponseWriter, err error, partial *result.Results) {
	classified := traceroute.ClassifyError(err)
	log.Debugf("request failed with %s: %s", classified.Code, err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForCode(classified.Code))
	_ = json.NewEncoder(w).Encode(traceroute.ErrorResponse{
		Code:           classified.Code,
		Message:        classified.Message,
		PartialResults: partial,
	})
}
