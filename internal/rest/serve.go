// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package rest exposes the fusion operators through a gin HTTP API. Operator logs are
// streamed back to the client as plain text.
package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/klauspost/cpuid"

	"github.com/mlnoga/fuselight/internal/ops"
	"github.com/mlnoga/fuselight/internal/ops/fuse"
	"github.com/mlnoga/fuselight/web"
)

// Creates the router with the web page and all API endpoints
func NewRouter() *gin.Engine {
	r := gin.Default()
	r.GET("/", getIndex)
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.GET("/info", getInfo)
			v1.POST("/stats", postStats)
			v1.POST("/weights", postWeights)
			v1.POST("/fuse", postFuse)
		}
	}
	return r
}

// Listens and serves on the given address, e.g. ":8080"
func Serve(addr string) error {
	return NewRouter().Run(addr)
}

func getIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", web.IndexHTML)
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

func getInfo(c *gin.Context) {
	ctx := ops.NewContext(io.Discard)
	c.JSON(http.StatusOK, gin.H{
		"cpu":          cpuid.CPU.BrandName,
		"logicalCores": cpuid.CPU.LogicalCores,
		"avx2":         cpuid.CPU.AVX2(),
		"maxThreads":   ctx.MaxThreads,
		"memoryMB":     ctx.MemoryMB,
		"fuseMemoryMB": ctx.FuseMemoryMB,
	})
}

func printArgs(logWriter io.Writer, prefix, suffix string, args interface{}) error {
	m, err := json.MarshalIndent(args, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(logWriter, "%s%s%s", prefix, string(m), suffix)
	return nil
}

// Serializes concurrent log output from parallel operators onto the response
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// Binds the arguments, checks them and starts a plain text log stream. Returns nil after
// answering with an error status
func beginJob(c *gin.Context, args interface{}, check func() error) *ops.Context {
	if err := c.ShouldBind(args); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil
	}
	if err := check(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil
	}

	logWriter := c.Writer
	logWriter.Header().Set("Content-Type", "text/plain")
	logWriter.WriteHeader(http.StatusOK)
	ctx := ops.NewContext(&lockedWriter{w: logWriter})

	fmt.Fprintf(ctx.Log, "Job %s\n", uuid.New().String())
	if err := printArgs(ctx.Log, "Arguments:\n", "\n", args); err != nil {
		fmt.Fprintf(ctx.Log, "Error printing arguments: %s\n", err.Error())
	}
	return ctx
}

// Materializes the promises of the operator sequence and reports any error into the stream
func runJob(c *gin.Context, ctx *ops.Context, seq *ops.OpSequence) {
	promises, err := seq.MakePromises(nil, ctx)
	if err == nil {
		_, err = ops.MaterializeAll(promises, ctx.MaxThreads, true)
	}
	if err != nil {
		fmt.Fprintf(ctx.Log, "Error: %s\n", err.Error())
	} else {
		fmt.Fprintf(ctx.Log, "Done\n")
	}
	c.Writer.(http.Flusher).Flush()
}

func checkPatterns(patterns ...string) error {
	for _, p := range patterns {
		if p != "" && !ops.IsPathAllowed(p) {
			return fmt.Errorf("path %s outside current directory tree", p)
		}
	}
	return nil
}

type postStatsArgs struct {
	FilePatterns []string `json:"filePatterns" binding:"required"`
}

func postStats(c *gin.Context) {
	var args postStatsArgs
	ctx := beginJob(c, &args, func() error { return checkPatterns(args.FilePatterns...) })
	if ctx == nil {
		return
	}
	runJob(c, ctx, ops.NewOpSequence(ops.NewOpLoadMany(args.FilePatterns)))
}

type postWeightsArgs struct {
	FilePatterns []string        `json:"filePatterns" binding:"required"`
	Weights      *fuse.OpWeights `json:"weights"`
	Save         *ops.OpSave     `json:"save"`
}

func postWeights(c *gin.Context) {
	args := postWeightsArgs{Weights: fuse.NewOpWeightsDefault(), Save: ops.NewOpSave("weights%d.fits")}
	ctx := beginJob(c, &args, func() error {
		if args.Weights == nil || args.Save == nil {
			return fmt.Errorf("weights and save operators must not be null")
		}
		if err := args.Weights.Weights.Validate(); err != nil {
			return err
		}
		return checkPatterns(append([]string{args.Weights.Heatmap, args.Save.FilePattern}, args.FilePatterns...)...)
	})
	if ctx == nil {
		return
	}
	runJob(c, ctx, ops.NewOpSequence(
		ops.NewOpLoadMany(args.FilePatterns),
		ops.NewOpForEach(args.Weights),
		ops.NewOpForEach(args.Save),
	))
}

type postFuseArgs struct {
	FilePatterns []string     `json:"filePatterns" binding:"required"`
	Fuse         *fuse.OpFuse `json:"fuse"`
	Save         *ops.OpSave  `json:"save"`
}

func postFuse(c *gin.Context) {
	args := postFuseArgs{Fuse: fuse.NewOpFuseDefault(), Save: ops.NewOpSave("fused.fits")}
	ctx := beginJob(c, &args, func() error {
		if args.Fuse == nil || args.Save == nil {
			return fmt.Errorf("fuse and save operators must not be null")
		}
		return checkPatterns(append([]string{args.Save.FilePattern}, args.FilePatterns...)...)
	})
	if ctx == nil {
		return
	}
	runJob(c, ctx, ops.NewOpSequence(
		ops.NewOpLoadMany(args.FilePatterns),
		args.Fuse,
		args.Save,
	))
}
