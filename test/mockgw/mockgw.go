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

package main

import (
	"crypto/rsa"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"

	"sirena/pkg/sec"
	"sirena/test/testutil/mock"
)

func main() {
	var (
		listenAddr  string
		clientKey   string
		clientPub   string
		retryEvery  int
		rejectEvery int
		delay       time.Duration
		reverse     bool
	)
	flag.StringVar(&listenAddr, "listen", "127.0.0.1:34323", "listen address")
	flag.StringVar(&clientKey, "client-key", "", "client private key file, its public half verifies handshakes")
	flag.StringVar(&clientPub, "client-pub", "", "client public key file")
	flag.IntVar(&retryEvery, "retry-every", 0, "answer every Nth request of a method with the not processed status")
	flag.IntVar(&rejectEvery, "reject-keys", 0, "reject the symmetric key of the next N requests")
	flag.DurationVar(&delay, "delay", 0, "delay before every reply")
	flag.BoolVar(&reverse, "reverse", false, "reply to bursts of requests in reverse order")

	flag.Parse()
	flag.Lookup("logtostderr").Value.Set("true")

	pub, err := loadClientKey(clientKey, clientPub)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	g, err := mock.NewGateway(listenAddr)
	if err != nil {
		glog.Exitf("listen %s: %s", listenAddr, err)
	}
	g.SetClientKey(pub)
	g.SetDelay(delay)
	g.ReverseReplies(reverse)
	if rejectEvery > 0 {
		g.RejectNextKeys(rejectEvery)
	}
	if retryEvery > 1 {
		g.SetRetryFilter(func(r *mock.Request) bool {
			return r.Seq%retryEvery == 0
		})
	}
	glog.Infof("mock gateway listening on %s", g.Addr())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	<-sigs
	g.Close()
	glog.Infof("mock gateway stopped, %d connection(s), %d handshake(s)", g.Accepted(), g.Handshakes())
	glog.Flush()
}

func loadClientKey(privatePath, publicPath string) (*rsa.PublicKey, error) {
	switch {
	case privatePath != "":
		key, err := sec.LoadPrivateKey("", privatePath)
		if err != nil {
			return nil, err
		}
		return &key.PublicKey, nil
	case publicPath != "":
		b, err := os.ReadFile(publicPath)
		if err != nil {
			return nil, err
		}
		return sec.ParsePublicKey(string(b))
	}
	return nil, fmt.Errorf("one of -client-key and -client-pub is required")
}
