//go:build mage

// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "pvbt"
	modulePath = "github.com/penny-vault/pvbt"
	coverFile  = "coverage.out"
)

var goexe = "go"

func init() {
	if exe := os.Getenv("GOEXE"); exe != "" {
		goexe = exe
	}
}

// Build compiles the pvbt binary with version information stamped in.
func Build() error {
	fmt.Println("Building...")
	return sh.RunWith(versionEnv(), goexe, buildArgs("build", "-o", binaryName, "-v", ".")...)
}

func Install() error {
	return sh.RunWith(versionEnv(), goexe, buildArgs("install", ".")...)
}

func Clean() error {
	fmt.Println("Cleaning...")
	for _, fn := range []string{binaryName, coverFile} {
		if err := os.RemoveAll(fn); err != nil {
			return err
		}
	}
	return nil
}

// Check formats, vets and runs the race-enabled test suite.
func Check() {
	mg.Deps(Fmt, Vet)
	mg.Deps(TestRace)
}

func Test() error {
	fmt.Println("Go Test")
	return runQuiet(goexe, "test", "./...")
}

func TestRace() error {
	fmt.Println("Go Test Race")
	return runQuiet(goexe, "test", "-race", "./...")
}

// Fmt fails when gofmt reports any file outside the reference pack.
func Fmt() error {
	fmt.Println("Go Format")
	out, err := sh.Output("gofmt", "-l", ".")
	if err != nil {
		return fmt.Errorf("running gofmt: %w", err)
	}
	var unformatted []string
	for _, fn := range strings.Split(out, "\n") {
		if fn == "" || strings.HasPrefix(fn, "_") {
			continue
		}
		unformatted = append(unformatted, fn)
	}
	if len(unformatted) > 0 {
		fmt.Println("The following files are not gofmt'ed:")
		fmt.Println(strings.Join(unformatted, "\n"))
		return errors.New("improperly formatted go files")
	}
	return nil
}

func Vet() error {
	fmt.Println("Go Vet")
	if err := sh.Run(goexe, "vet", "./..."); err != nil {
		return fmt.Errorf("error running go vet: %w", err)
	}
	return nil
}

// Cover writes a coverage profile for every package and opens the html report.
func Cover() error {
	fmt.Println("Generate Test Coverage HTML")
	if err := sh.Run(goexe, "test", "-coverprofile="+coverFile, "-covermode=count", "./..."); err != nil {
		return err
	}
	return sh.Run(goexe, "tool", "cover", "-html="+coverFile)
}

// Refresh downloads price history for every catalog ticker into data.dir.
func Refresh() error {
	mg.Deps(Build)
	return sh.RunV("./"+binaryName, "update")
}

func buildArgs(verb string, args ...string) []string {
	ldflags := fmt.Sprintf("-X %[1]s/common.commitHash=$COMMIT_HASH -X %[1]s/common.buildDate=$BUILD_DATE", modulePath)
	out := []string{verb, "-ldflags", ldflags}
	if runtime.GOOS == "windows" {
		out = append(out, "-buildmode", "exe")
	}
	return append(out, args...)
}

func versionEnv() map[string]string {
	hash, _ := sh.Output("git", "rev-parse", "--short", "HEAD")
	return map[string]string{
		"COMMIT_HASH": hash,
		"BUILD_DATE":  time.Now().Format("2006-01-02T15:04:05Z0700"),
	}
}

func runQuiet(cmd string, args ...string) error {
	if mg.Verbose() {
		return sh.RunV(cmd, args...)
	}
	output, err := sh.Output(cmd, args...)
	if err != nil {
		fmt.Fprint(os.Stderr, output)
	}
	return err
}
