// Copyright 2026 The Kdbx Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// kdbx-dump-header prints the parsed outer header of a kdbx database.
// Primarily for investigating the kdbx format.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"zombiezen.com/go/kdbx/internal/cmdutil"
	"zombiezen.com/go/kdbx/pkg/kdbx"
	"zombiezen.com/go/kdbx/pkg/kdbxcrypt"
)

func main() {
	cmd := &cobra.Command{
		Use:           "kdbx-dump-header <file>",
		Short:         "Print the parsed header of a kdbx database",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dumpHeader(args[0])
		},
	}
	cmdutil.Run(cmd)
}

func dumpHeader(path string) error {
	f, err := kdbx.Open(path)
	if err != nil {
		return err
	}
	major, minor := f.Version()
	h := f.Header()
	fmt.Printf("Version: %d.%d\n", major, minor)
	fmt.Printf("Cipher: %v\n", h.Cipher)
	fmt.Printf("Compression: %s\n", compressionName(h.Compression))
	printKdf(h.Kdf)
	fmt.Printf("Master Seed: %x\n", h.MasterSeed)
	fmt.Printf("Encryption IV: %x\n", h.EncryptionIV)
	if h.StreamStartBytes != nil {
		fmt.Printf("Stream Start Bytes: %x\n", h.StreamStartBytes)
		fmt.Printf("Inner Stream: %v\n", h.InnerStreamID)
	}
	if h.PublicCustomData != nil {
		fmt.Printf("Public Custom Data: %d bytes\n", len(h.PublicCustomData))
	}
	return nil
}

func compressionName(c uint32) string {
	switch c {
	case kdbx.CompressionNone:
		return "none"
	case kdbx.CompressionGzip:
		return "gzip"
	default:
		return fmt.Sprintf("unknown (%d)", c)
	}
}

func printKdf(params kdbxcrypt.KdfParams) {
	switch p := params.(type) {
	case *kdbxcrypt.Argon2Params:
		if p.ID {
			fmt.Println("KDF: Argon2id")
		} else {
			fmt.Println("KDF: Argon2d")
		}
		fmt.Printf("\tVersion: %#x\n", p.Version)
		fmt.Printf("\tLanes: %d\n", p.Lanes)
		fmt.Printf("\tMemory: %d bytes (%d KiB)\n", p.Memory, p.Memory/1024)
		fmt.Printf("\tIterations: %d\n", p.Iterations)
		fmt.Printf("\tSalt: %x\n", p.Salt)
	case *kdbxcrypt.AESParams:
		fmt.Println("KDF: AES")
		fmt.Printf("\tRounds: %d\n", p.Rounds)
		fmt.Printf("\tSalt: %x\n", p.Salt)
	default:
		fmt.Printf("KDF: %v\n", params.UUID())
	}
}
