/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the
terminal backend, tracking HTTP requests, shell session operations, output
drains and WebSocket streaming.

# Features

- HTTP request metrics (latency, throughput, size)
- Session operation metrics (duration, status, lock wait)
- Drain outcomes (data, timeout, closed) and byte counters
- Decode error counters (partial vs invalid sequences)
- Session lifecycle gauge
- WebSocket connection metrics
- Go runtime and process collectors

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Time operations
	timer := monitoring.NewTimer(metrics, "command")
	// ... perform operation ...
	timer.Stop("success")

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(metrics.Handler()))
*/
package monitoring
