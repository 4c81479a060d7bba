/*
Package toolgate is a process orchestration gateway for external tool
servers. It spawns and supervises child processes speaking line-delimited
JSON over stdio, talks to HTTP sidecars over Server-Sent Events, and runs
a command pipeline that turns free-form WhatsApp messages into tool
executions with chunked replies.

# Concept

Toolgate treats every external capability (GitHub, Notion, Slack, model
inference, payments, messaging) as a tool server: a child process or HTTP
sidecar with a uniform request/response contract. The orchestrator owns
the lifecycle of those servers; the tool client layers per-user
credentials on top; the interpreter and executor turn natural-language
requests into concrete operations and deliver the results back.

# Key Features

  - Lazy lifecycle: tool servers spawn on first use and are reaped on
    exit, with per-server serialization of exchanges.
  - Credential scoping: per-user tokens are injected into the child's
    environment at spawn time and never leak into the shared descriptor.
  - Two transports: stdio framing for local processes, SSE for HTTP
    sidecars, behind one Send call.
  - Chunked delivery: long replies are split to fit the WhatsApp size
    limit and delivered with positional prefixes.

# Usage

Build a Gateway from a configuration and feed it incoming messages:

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/toolgate"
		"github.com/aretw0/toolgate/pkg/config"
	)

	func main() {
		cfg, err := config.Load("toolgate.yaml")
		if err != nil {
			log.Fatal(err)
		}

		gw, err := toolgate.New(cfg)
		if err != nil {
			log.Fatal(err)
		}
		defer gw.Shutdown(context.Background())

		result, err := gw.HandleIncoming(context.Background(),
			"+5215550001111", "Genera un texto sobre marketing digital")
		if err != nil {
			log.Fatal(err)
		}
		log.Println("task", result.TaskID, "state", result.State)
	}
*/
package toolgate
