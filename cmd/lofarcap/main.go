// Command lofarcap captures a high-rate UDP datagram stream to disk.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	lofarcap "github.com/mugundhan1/lofarcap"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var githash = "githash not computed"
var buildDate = "build date not computed"

// makeFileExist checks that dir/filename exists, creating the directory
// and file if they don't.
func makeFileExist(dir, filename string) (string, error) {
	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		if err := os.MkdirAll(dir, 0775); err != nil {
			return "", err
		}
	}
	fullname := path.Join(dir, filename)
	if _, err := os.Stat(fullname); os.IsNotExist(err) {
		f, err := os.OpenFile(fullname, os.O_WRONLY|os.O_CREATE, 0664)
		if err != nil {
			return "", err
		}
		f.Close()
	}
	return fullname, nil
}

func startLogger(pfname string) *log.Logger {
	logger := log.New(os.Stderr, "", log.LstdFlags)
	logger.SetOutput(&lumberjack.Logger{
		Filename:   pfname,
		MaxSize:    10,
		MaxBackups: 4,
		MaxAge:     180,
		Compress:   true,
	})
	return logger
}

func setupViper(configFile string) error {
	viper.SetDefault("Timeout", 10)
	viper.SetDefault("BufSize", 1<<24)
	viper.SetDefault("MaxWrite", 1<<20)

	if configFile != "" {
		viper.SetConfigFile(configFile)
		return viper.ReadInConfig()
	}

	u, err := user.Current()
	home := ""
	if err == nil {
		home = u.HomeDir
	}
	dotLofarcap := filepath.Join(home, ".lofarcap")
	if _, err := makeFileExist(dotLofarcap, "config.yaml"); err == nil {
		viper.SetConfigName("config")
		viper.AddConfigPath("/etc/lofarcap")
		viper.AddConfigPath(dotLofarcap)
		viper.AddConfigPath(".")
		if err := viper.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return err
			}
		}
	}
	return nil
}

func buildConfig() (lofarcap.Config, error) {
	pflag.StringP("ports", "p", "0", "UDP ports (csv, KxN shorthand for N ports from base K, or 0 for stdin)")
	pflag.StringP("out", "o", "/dev/null", "output filename base")
	pflag.IntP("len", "l", 0, "fixed packet length, 0 = any")
	pflag.BoolP("sizehead", "s", false, "prepend a 2-byte length to each record")
	pflag.BoolP("check", "c", false, "enable LOFAR header checks (forces --len 7824)")
	pflag.IntP("timeout", "t", 10, "idle timeout, seconds")
	pflag.StringP("Start", "S", "", "start time (ISO or unix seconds)")
	pflag.StringP("End", "E", "", "end time (ISO or unix seconds)")
	pflag.Int64P("duration", "d", 0, "run duration, seconds (mutually exclusive with --End)")
	pflag.Int64P("Maxfilesize", "M", 0, "split threshold in bytes; negative selects per-file stats")
	pflag.IntP("bufsize", "b", 1<<24, "ring buffer minimum size in bytes")
	pflag.IntP("maxwrite", "m", 1<<20, "consumer chunk upper bound in bytes")
	pflag.BoolP("compress", "z", false, "pipe output through a compressor")
	pflag.StringP("compcommand", "Z", "", "compression command template, must contain one %s")
	pflag.StringP("path", "P", "", "PATH override for the compressor subprocess")
	pflag.BoolP("verbose", "v", false, "additional startup logging")
	pflag.String("config", "", "path to a YAML config file")
	pflag.String("logfile", "", "path to the lofarcap log file")
	pflag.Int("statusport", 0, "ZMQ status feed port, 0 disables it")
	pflag.String("fillhistory", "", "path to dump the ring fill-fraction history as .npy")
	pflag.Parse()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return lofarcap.Config{}, err
	}
	if err := setupViper(viper.GetString("config")); err != nil {
		return lofarcap.Config{}, fmt.Errorf("reading config: %w", err)
	}

	ports, err := lofarcap.ParsePorts(viper.GetString("ports"))
	if err != nil {
		return lofarcap.Config{}, err
	}
	start, err := lofarcap.ParseTimeArg(viper.GetString("Start"))
	if err != nil {
		return lofarcap.Config{}, err
	}
	end, err := lofarcap.ParseTimeArg(viper.GetString("End"))
	if err != nil {
		return lofarcap.Config{}, err
	}

	cfg := lofarcap.Config{
		Ports:        ports,
		Out:          viper.GetString("out"),
		PackLen:      viper.GetInt("len"),
		SizeHead:     viper.GetBool("sizehead"),
		Check:        viper.GetBool("check"),
		Timeout:      time.Duration(viper.GetInt64("timeout")) * time.Second,
		Start:        start,
		End:          end,
		Duration:     time.Duration(viper.GetInt64("duration")) * time.Second,
		MaxFileSize:  viper.GetInt64("Maxfilesize"),
		BufSize:      viper.GetInt("bufsize"),
		MaxWrite:     viper.GetInt("maxwrite"),
		Compress:     viper.GetBool("compress"),
		CompCommand:  viper.GetString("compcommand"),
		PathOverride: viper.GetString("path"),
		Verbose:      viper.GetBool("verbose"),
		LogFile:      viper.GetString("logfile"),
		StatusPort:   viper.GetInt("statusport"),
		FillHistory:  viper.GetString("fillhistory"),
	}
	return cfg, nil
}

func main() {
	buildDate = strings.Replace(buildDate, ".", " ", -1)
	lofarcap.Build.Githash = githash
	lofarcap.Build.Date = buildDate
	if host, err := os.Hostname(); err == nil {
		lofarcap.Build.Host = host
	}

	printVersion := pflag.Bool("version", false, "print version and quit")
	cfg, err := buildConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *printVersion {
		fmt.Printf("lofarcap version %s (git commit %s), go %s, %d CPUs\n",
			lofarcap.Build.Version, githash, runtime.Version(), runtime.NumCPU())
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.PathOverride != "" {
		os.Setenv("PATH", cfg.PathOverride)
	}

	var logger *log.Logger
	if cfg.LogFile != "" {
		logger = startLogger(cfg.LogFile)
	} else {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	if cfg.Verbose {
		logger.Printf("starting with config: %+v", cfg)
	}

	sess, err := lofarcap.NewSession(cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := lofarcap.Run(context.Background(), sess); err != nil {
		logger.Printf("fatal: %v", err)
		os.Exit(1)
	}
}
