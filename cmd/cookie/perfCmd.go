package cookie

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/evercookie/cmd/util"
	"github.com/ValentinKolb/evercookie/lib/backend"
	"github.com/ValentinKolb/evercookie/lib/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the evercookie client",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix  = "__test"
	perfNumThreads = 10
	perfKeySpread  = 100
	perfSkip       = make([]string, 0)

	// run is appended to every key so repeated runs never hit keys of an earlier run
	perfRun = strconv.FormatInt(time.Now().UnixNano(), 36)
)

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the read tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfKeySpread <= 0 || perfNumThreads <= 0 {
		return fmt.Errorf("keys and threads must be positive")
	}
	return nil
}

func runPerf(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	config := util.GetConfig()

	fmt.Println("Performance testing tool for the evercookie client")

	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(config.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)

	// every set uses a new key, a repeated key would only measure the probe
	var setCounter atomic.Int64
	results["set"] = benchmark("set", func(b *testing.B) {
		b.RunParallel(func(pb *testing.PB) {
			for pb.Next() {
				key := fmt.Sprintf("%s-%s-set-%d", perfKeyPrefix, perfRun, setCounter.Add(1))
				p, err := client.Set(key, "test")
				if err != nil {
					b.Logf("(set) - error setting key: %v", err)
					continue
				}
				_ = p.Wait(ctx)
			}
		})
	})

	results["set-existing"] = benchmark("set-existing", func(b *testing.B) {
		getKey := prepareKeys(ctx, "set-existing")
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				if _, err := client.Set(getKey(counter), "other"); err != nil {
					b.Logf("(set-existing) - error setting key: %v", err)
				}
				counter++
			}
		})
	})

	results["get"] = benchmark("get", func(b *testing.B) {
		getKey := prepareKeys(ctx, "get")
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				client.Get(ctx, getKey(counter))
				counter++
			}
		})
	})

	results["get-miss"] = benchmark("get-miss", func(b *testing.B) {
		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				client.Get(ctx, fmt.Sprintf("%s-%s-get-miss-%d", perfKeyPrefix, perfRun, counter%perfKeySpread))
				counter++
			}
		})
	})

	// only the async store is left, every read walks all backends
	results["get-async-only"] = benchmark("get-async-only", func(b *testing.B) {
		getKey := prepareKeys(ctx, "get-async-only")
		for _, kind := range []backend.Kind{backend.Cookie, backend.DurableStore, backend.SessionStore} {
			if bk, ok := client.Backend(kind); ok {
				if err := bk.Clear(ctx); err != nil {
					b.Fatalf("(get-async-only) - error clearing %s: %v", kind, err)
				}
			}
		}
		b.ResetTimer()
		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				client.Get(ctx, getKey(counter))
				counter++
			}
		})
	})

	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, config); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// benchmark runs fn unless the test is skipped and prints the result
func benchmark(test string, fn func(b *testing.B)) testing.BenchmarkResult {
	if shouldSkip(test) {
		printResult(test, testing.BenchmarkResult{})
		return testing.BenchmarkResult{}
	}
	result := testing.Benchmark(func(b *testing.B) {
		b.SetParallelism(perfNumThreads)
		fn(b)
	})
	printResult(test, result)
	return result
}

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// prepareKeys stores perfKeySpread keys and returns a function to get a key by index (with
// wraparound)
func prepareKeys(ctx context.Context, prefix string) func(int) string {
	keys := make([]string, perfKeySpread)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s-%s-%s-%d", perfKeyPrefix, perfRun, prefix, i)
		p, err := client.Set(keys[i], "test")
		if err != nil {
			fmt.Printf("(%s) - error setting key: %v\n", prefix, err)
			continue
		}
		_ = p.Wait(ctx)
	}

	return func(i int) string {
		return keys[i%perfKeySpread]
	}
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config common.Config) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"DataDir", "ContainerVersion", "WebRTC", "Canvas",
		"Threads", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		skipped := "true"

		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			config.DataDir,
			strconv.Itoa(config.ContainerVersion),
			strconv.FormatBool(config.EnableWebRTC),
			strconv.FormatBool(config.EnableCanvas),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
