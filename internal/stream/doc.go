// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream turns raw response chunks into text fragments.
//
// Backends deliver bytes in arbitrary chunks, so a multi-byte UTF-8 character
// may be split across two chunks. The Decoder carries the incomplete tail of
// one chunk over to the next and replaces malformed input with U+FFFD rather
// than failing the stream.
//
// # Key Types
//
//   - Decoder: Stateful UTF-8 chunk decoder
//   - Reader: Adapts a transport.ByteStream to a sequence of fragments
//
// # Usage
//
//	r := stream.NewReader(byteStream)
//	for {
//	    fragment, err := r.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(fragment)
//	}
package stream
