package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/courier/upload"
)

// TransportFlags returns the flags selecting and configuring the batch
// transport shared by run and flush.
func TransportFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "transport",
			Usage:   "Batch transport: http, s3, redis",
			Value:   "http",
			EnvVars: []string{"COURIER_TRANSPORT"},
		},
		&cli.StringFlag{
			Name:    "collector-url",
			Usage:   "Collector intake URL (http transport)",
			EnvVars: []string{"COURIER_COLLECTOR_URL"},
		},
		&cli.StringSliceFlag{
			Name:  "header",
			Usage: "Extra request header as Name:Value (http transport, repeatable)",
		},
		&cli.StringFlag{
			Name:    "s3-bucket",
			Usage:   "Destination bucket (s3 transport)",
			EnvVars: []string{"COURIER_S3_BUCKET"},
		},
		&cli.StringFlag{
			Name:  "s3-prefix",
			Usage: "Key prefix within the bucket (s3 transport)",
		},
		&cli.StringFlag{
			Name:  "s3-region",
			Usage: "AWS region (s3 transport)",
		},
		&cli.StringFlag{
			Name:  "s3-endpoint",
			Usage: "Custom endpoint for S3-compatible providers (s3 transport)",
		},
		&cli.BoolFlag{
			Name:  "s3-path-style",
			Usage: "Force path-style addressing (s3 transport)",
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis connection URL (redis transport)",
			EnvVars: []string{"COURIER_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:  "redis-key-prefix",
			Usage: "List key prefix (redis transport)",
		},
	}
}

// buildTransport constructs the transport selected by --transport.
func buildTransport(c *cli.Context) (upload.Transport, error) {
	switch name := c.String("transport"); name {
	case "http":
		headers, err := parseHeaders(c.StringSlice("header"))
		if err != nil {
			return nil, err
		}
		return upload.NewHTTPTransport(upload.HTTPConfig{
			URL:     c.String("collector-url"),
			Headers: headers,
		})
	case "s3":
		return upload.NewS3Transport(c.Context, upload.S3Config{
			Bucket:       c.String("s3-bucket"),
			Prefix:       c.String("s3-prefix"),
			Region:       c.String("s3-region"),
			Endpoint:     c.String("s3-endpoint"),
			UsePathStyle: c.Bool("s3-path-style"),
		})
	case "redis":
		return upload.NewRedisTransport(upload.RedisConfig{
			URL:       c.String("redis-url"),
			KeyPrefix: c.String("redis-key-prefix"),
		})
	default:
		return nil, fmt.Errorf("unknown transport %q (must be http, s3, or redis)", name)
	}
}

func parseHeaders(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q (expected Name:Value)", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}
