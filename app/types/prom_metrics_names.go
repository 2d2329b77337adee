// SPDX-FileCopyrightText: Copyright (c) 2016-2025, CloudZero, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package types

import "strings"

const (
	// GatewayMetricPrefix namespaces every metric the gateway exports.
	GatewayMetricPrefix = "telemetry_gateway_"
	// StorageMetricPrefix namespaces object storage client metrics.
	StorageMetricPrefix = "telemetry_gateway_storage_"
)

// GatewayMetric takes a metric name as input and returns a new metric name
// prefixed with "telemetry_gateway_".
//
// The input metric name must not be empty and must not start with any of the
// forbidden prefixes: "", "telemetry", "gateway" or "storage". If these
// conditions are violated, the function will panic.
//
// Example usage:
//
//	metric := GatewayMetric("documents_total") // Returns "telemetry_gateway_documents_total"
func GatewayMetric(metricName string) string {
	checkMetricName(metricName)
	return GatewayMetricPrefix + metricName
}

// StorageMetric takes a metric name as input and returns a new metric name
// prefixed with "telemetry_gateway_storage_". The same naming rules as
// GatewayMetric apply.
//
// Example usage:
//
//	metric := StorageMetric("operations_total") // Returns "telemetry_gateway_storage_operations_total"
func StorageMetric(metricName string) string {
	checkMetricName(metricName)
	return StorageMetricPrefix + metricName
}

func checkMetricName(metricName string) {
	parts := strings.SplitN(metricName, "_", 2)
	if len(parts) == 0 {
		panic("metricName is invalid: no parts found after splitting")
	}
	switch parts[0] {
	case "", "telemetry", "gateway", "storage":
		panic("metricName contains a forbidden prefix or is empty")
	}
}
