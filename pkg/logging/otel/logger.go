//  
//  Copyright 2023 PayPal Inc.
//  
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//  
//     http://www.apache.org/licenses/LICENSE-2.0
//  
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//  

package otel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	otelCfg "sirena/pkg/logging/otel/config"
)

var (
	mtx           sync.Mutex
	meterProvider *sdkmetric.MeterProvider
	enabled       atomic.Bool

	instrumentsOnce  sync.Once
	requestHistogram metric.Float64Histogram
	connectHistogram metric.Float64Histogram
	retryCounter     metric.Int64Counter
	handshakeCounter metric.Int64Counter

	buckets otelCfg.HistBuckets
)

// Initialize installs the OTLP/HTTP meter provider when c is enabled.
func Initialize(c *otelCfg.Config) (err error) {
	if c == nil || !c.Enabled {
		return
	}
	c.SetDefaultIfNotDefined()

	mtx.Lock()
	defer mtx.Unlock()
	if meterProvider != nil {
		glog.Warningf("otel meter provider already initialized")
		return
	}

	var provider *sdkmetric.MeterProvider
	if provider, err = NewMeterProvider(context.Background(), c); err != nil {
		glog.Errorf("fail to initialize otel: %s", err)
		return
	}
	meterProvider = provider
	buckets = c.HistogramBuckets
	otel.SetMeterProvider(provider)
	enabled.Store(true)
	glog.Infof("otel initialized, exporting to %s:%d%s every %s", c.Host, c.Port, c.UrlPath, c.Resolution.Duration)
	return
}

func NewMeterProvider(ctx context.Context, c *otelCfg.Config) (*sdkmetric.MeterProvider, error) {
	exp, err := NewHTTPExporter(ctx, c)
	if err != nil {
		return nil, err
	}
	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(c.ServiceName),
		attribute.String("environment", c.Environment),
	)
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(c.Resolution.Duration))
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	), nil
}

func NewHTTPExporter(ctx context.Context, c *otelCfg.Config) (sdkmetric.Exporter, error) {
	deltaTemporalitySelector := func(sdkmetric.InstrumentKind) metricdata.Temporality { return metricdata.DeltaTemporality }
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(fmt.Sprintf("%s:%d", c.Host, c.Port)),
		otlpmetrichttp.WithURLPath(c.UrlPath),
		otlpmetrichttp.WithTimeout(7 * time.Second),
		otlpmetrichttp.WithTemporalitySelector(deltaTemporalitySelector),
		otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{
			Enabled:         true,
			InitialInterval: 1 * time.Second,
			MaxInterval:     10 * time.Second,
			MaxElapsedTime:  240 * time.Second,
		}),
	}
	if !c.UseTls {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return otlpmetrichttp.New(ctx, opts...)
}

// Shutdown flushes pending data points and stops the exporter.
func Shutdown(ctx context.Context) (err error) {
	mtx.Lock()
	defer mtx.Unlock()
	if meterProvider == nil {
		return
	}
	enabled.Store(false)
	err = meterProvider.Shutdown(ctx)
	meterProvider = nil
	return
}

func IsEnabled() bool {
	return enabled.Load()
}

func initInstruments() {
	meter := otel.Meter(MeterName)
	var err error
	if requestHistogram, err = meter.Float64Histogram(MetricPrefix+"request",
		metric.WithDescription("Gateway round trip latency per method"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(buckets.Request...)); err != nil {
		glog.Errorf("otel: request histogram: %s", err)
	}
	if connectHistogram, err = meter.Float64Histogram(MetricPrefix+"connect",
		metric.WithDescription("Gateway connect latency"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(buckets.Connect...)); err != nil {
		glog.Errorf("otel: connect histogram: %s", err)
	}
	if retryCounter, err = meter.Int64Counter(MetricPrefix+"retry",
		metric.WithDescription("Requests sent again within a call")); err != nil {
		glog.Errorf("otel: retry counter: %s", err)
	}
	if handshakeCounter, err = meter.Int64Counter(MetricPrefix+"handshake",
		metric.WithDescription("Completed key handshakes")); err != nil {
		glog.Errorf("otel: handshake counter: %s", err)
	}
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func RecordRequest(method string, status string, d time.Duration) {
	if !IsEnabled() {
		return
	}
	instrumentsOnce.Do(initInstruments)
	if requestHistogram != nil {
		requestHistogram.Record(context.Background(), milliseconds(d), metric.WithAttributes(
			attribute.String(attrMethod, method),
			attribute.String(attrStatus, status)))
	}
}

func RecordConnect(endpoint string, status string, d time.Duration) {
	if !IsEnabled() {
		return
	}
	instrumentsOnce.Do(initInstruments)
	if connectHistogram != nil {
		connectHistogram.Record(context.Background(), milliseconds(d), metric.WithAttributes(
			attribute.String(attrEndpoint, endpoint),
			attribute.String(attrStatus, status)))
	}
}

func RecordRetry(method string, reason string) {
	if !IsEnabled() {
		return
	}
	instrumentsOnce.Do(initInstruments)
	if retryCounter != nil {
		retryCounter.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String(attrMethod, method),
			attribute.String(attrReason, reason)))
	}
}

func RecordHandshake(kind string) {
	if !IsEnabled() {
		return
	}
	instrumentsOnce.Do(initInstruments)
	if handshakeCounter != nil {
		handshakeCounter.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String(attrKind, kind)))
	}
}
