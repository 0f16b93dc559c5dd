// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

//go:build ignore
// +build ignore

// This is an example showing how to run the traceroute HTTP server
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/DataDog/datalink-traceroute/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer()

	addr := ":8080"
	log.Printf("Starting traceroute HTTP server on %s", addr)
	log.Printf("Example usage: curl 'http://localhost:8080/traceroute?target=example.com&protocol=udp&queries=2'")

	if err := srv.Start(ctx, addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
