// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport defines the boundary between the chat session and the
// model-serving backend, plus the HTTP client for the relay backend.
//
// A Transport turns one chat turn into a ByteStream: raw response bytes
// delivered chunk by chunk. The session never inspects the wire protocol.
//
// # Key Types
//
//   - Transport: Sends a message with a model id and returns a ByteStream
//   - ByteStream: Ordered chunks of an incrementally delivered body
//   - HTTPError: Non-success status before any byte was streamed
//   - Error: Network or read failure while opening or reading the stream
//   - RelayClient: Transport for the relay's POST /chat endpoint
//
// # Usage
//
//	client := transport.NewRelayClient(transport.DefaultRelayConfig())
//	stream, err := client.SendTurn(ctx, "hello", "gpt-3.5-turbo")
//	if err != nil {
//	    // transport.IsHTTPError(err) / transport.IsTransportError(err)
//	}
//	defer stream.Close()
//	for {
//	    chunk, err := stream.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	}
package transport
