// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package server

import "strconv"

// getParam returns the first value of key parsed by parse, or defaultValue
// when the key is absent or does not parse
func getParam[T any](query map[string][]string, key string, parse func(string) (T, error), defaultValue T) T {
	values, ok := query[key]
	if !ok || len(values) == 0 {
		return defaultValue
	}
	val, err := parse(values[0])
	if err != nil {
		return defaultValue
	}
	return val
}

func getStringParam(query map[string][]string, key string, defaultValue string) string {
	return getParam(query, key, func(s string) (string, error) { return s, nil }, defaultValue)
}

func getIntParam(query map[string][]string, key string, defaultValue int) int {
	return getParam(query, key, strconv.Atoi, defaultValue)
}

func getBoolParam(query map[string][]string, key string, defaultValue bool) bool {
	return getParam(query, key, strconv.ParseBool, defaultValue)
}
