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

// Package stats keeps per-method request latency histograms.
package stats

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	kMinLatency = int64(time.Microsecond)
	kMaxLatency = int64(3600 * time.Second)
	kSigFigures = 3
)

type (
	RequestStat struct {
		mtx       sync.Mutex
		hist      *hdrhistogram.Histogram
		total     time.Duration
		numErrors int64
	}

	// Statistics groups request latency by gateway method.
	Statistics struct {
		all      RequestStat
		byMethod sync.Map // string -> *RequestStat
		tmStart  time.Time
	}

	StatsData struct {
		Throughput   float32
		AvgLatency   time.Duration
		MinLatency   time.Duration
		MaxLatency   time.Duration
		P50Latency   time.Duration
		P95Latency   time.Duration
		P99Latency   time.Duration
		P9999Latency time.Duration
		NumRequests  int64
		NumErrors    int64
	}
)

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(kMinLatency, kMaxLatency, kSigFigures)
}

func (s *RequestStat) Put(tm time.Duration, err error) {
	v := int64(tm)
	if v < kMinLatency {
		v = kMinLatency
	} else if v > kMaxLatency {
		v = kMaxLatency
	}
	s.mtx.Lock()
	if s.hist == nil {
		s.hist = newHistogram()
	}
	s.hist.RecordValue(v)
	s.total += tm
	if err != nil {
		s.numErrors++
	}
	s.mtx.Unlock()
}

func (s *RequestStat) GetStats() (stat StatsData) {
	s.mtx.Lock()
	if s.hist != nil {
		stat.NumRequests = s.hist.TotalCount()
		stat.MinLatency = time.Duration(s.hist.Min())
		stat.MaxLatency = time.Duration(s.hist.Max())
		stat.P50Latency = time.Duration(s.hist.ValueAtQuantile(50.))
		stat.P95Latency = time.Duration(s.hist.ValueAtQuantile(95.))
		stat.P99Latency = time.Duration(s.hist.ValueAtQuantile(99.))
		stat.P9999Latency = time.Duration(s.hist.ValueAtQuantile(99.99))
	}
	stat.NumErrors = s.numErrors
	total := s.total
	s.mtx.Unlock()

	if stat.NumRequests != 0 {
		v := float32(total) / float32(stat.NumRequests)
		stat.AvgLatency = time.Duration(v)
		if v > 0 {
			stat.Throughput = 1.0e9 / v
		}
	}
	return
}

func (s *RequestStat) GetTotalCount() (num int64) {
	s.mtx.Lock()
	if s.hist != nil {
		num = s.hist.TotalCount()
	}
	s.mtx.Unlock()
	return
}

func (s *RequestStat) Reset() {
	s.mtx.Lock()
	if s.hist != nil {
		s.hist.Reset()
	}
	s.numErrors = 0
	s.total = 0
	s.mtx.Unlock()
}

func NewStatistics() *Statistics {
	return &Statistics{tmStart: time.Now()}
}

func (s *Statistics) Put(method string, tm time.Duration, err error) {
	s.all.Put(tm, err)
	v, ok := s.byMethod.Load(method)
	if !ok {
		v, _ = s.byMethod.LoadOrStore(method, &RequestStat{})
	}
	v.(*RequestStat).Put(tm, err)
}

func (s *Statistics) GetNumRequests() int64 {
	return s.all.GetTotalCount()
}

func (s *Statistics) Elapsed() time.Duration {
	return time.Since(s.tmStart)
}

// Snapshot returns the statistics of every method seen so far plus the
// aggregate under the empty method name.
func (s *Statistics) Snapshot() map[string]StatsData {
	m := map[string]StatsData{"": s.all.GetStats()}
	s.byMethod.Range(func(key, value interface{}) bool {
		m[key.(string)] = value.(*RequestStat).GetStats()
		return true
	})
	return m
}

func (s *Statistics) Reset() {
	s.all.Reset()
	s.byMethod.Range(func(_, value interface{}) bool {
		value.(*RequestStat).Reset()
		return true
	})
	s.tmStart = time.Now()
}

func (s *Statistics) PrettyPrint(w io.Writer) {
	msfunc := func(d time.Duration) time.Duration {
		return d.Round(time.Microsecond)
	}

	fmt.Fprintln(w,
		`
 request/s  |                             request latency                                              |  number of |            |                      | number of
  average   | average    | min        | max        |        50% |      95%   |      99%   |     99.99% |  requests  | percentage | method               |  errors
------------+------------+------------+------------+------------+------------+------------+------------+------------+------------+----------------------+-------------`)
	wstatFunc := func(stat *StatsData, percentage float32, method string) {
		fmt.Fprintf(w, "%12.2f %12s %12s %12s %12s %12s %12s %12s %12d %12.2f %-22s %12d\n",
			stat.Throughput, msfunc(stat.AvgLatency), msfunc(stat.MinLatency), msfunc(stat.MaxLatency), msfunc(stat.P50Latency), msfunc(stat.P95Latency),
			msfunc(stat.P99Latency), msfunc(stat.P9999Latency),
			stat.NumRequests, percentage, method, stat.NumErrors)
	}

	snapshot := s.Snapshot()
	all := snapshot[""]
	delete(snapshot, "")
	methods := make([]string, 0, len(snapshot))
	for k := range snapshot {
		methods = append(methods, k)
	}
	sort.Strings(methods)
	for _, method := range methods {
		stat := snapshot[method]
		if stat.NumRequests != 0 {
			wstatFunc(&stat, 100.0*float32(stat.NumRequests)/float32(all.NumRequests), method)
		}
	}
	fmt.Fprintln(w,
		"------------+------------+------------+------------+------------+------------+------------+------------+------------+------------+----------------------+-------------")
	wstatFunc(&all, 100.0, "All")
}
