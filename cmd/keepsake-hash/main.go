// Command keepsake-hash prints salted digests for hashed answers and can
// provision them into Redis.
//
//	ANSWER_SALT=... keepsake-hash "first answer" "second answer"
//
// prints one Q<n>_HASH=<digest> line per answer, numbered from 1.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/layer-3/keepsake/adapters/secrets"
	"github.com/layer-3/keepsake/core"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var errUsage = errors.New("usage: keepsake-hash [-salt-env NAME] [-redis-url URL] answer...")

func main() {
	if err := run(os.Args[1:], os.Getenv, os.Stdout); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, errUsage)
			os.Exit(2)
		}
		logrus.Fatal(err)
	}
}

func run(args []string, getenv func(string) string, out io.Writer) error {
	flags := flag.NewFlagSet("keepsake-hash", flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	saltVar := flags.String("salt-env", secrets.DefaultSaltVar, "environment variable holding the salt")
	redisURL := flags.String("redis-url", "", "provision the salt and digests into this Redis")
	if err := flags.Parse(args); err != nil {
		return err
	}

	salt := getenv(*saltVar)
	if strings.TrimSpace(salt) == "" {
		return fmt.Errorf("%s is empty, refusing to hash without a salt", *saltVar)
	}

	answers := flags.Args()
	if len(answers) == 0 {
		return errUsage
	}

	refs, digests, err := hashAnswers(answers, salt)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		fmt.Fprintf(out, "%s=%s\n", ref, digests[ref])
	}

	if *redisURL == "" {
		return nil
	}

	opts, err := redis.ParseURL(*redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := secrets.NewRedisSource(client).Provision(ctx, salt, digests); err != nil {
		return fmt.Errorf("failed to provision secrets: %w", err)
	}
	logrus.WithField("digests", len(digests)).Info("secrets provisioned")

	return nil
}

// hashAnswers digests every answer under Q<n>_HASH, n counting from 1.
// Refs come back in answer order.
func hashAnswers(answers []string, salt string) ([]string, map[string]string, error) {
	refs := make([]string, 0, len(answers))
	digests := make(map[string]string, len(answers))
	for i, answer := range answers {
		if core.Normalize(answer) == "" {
			return nil, nil, fmt.Errorf("answer %d is blank after normalization", i+1)
		}
		ref := digestRef(i + 1)
		refs = append(refs, ref)
		digests[ref] = core.DigestFor(answer, salt)
	}
	return refs, digests, nil
}

// digestRef names the digest of the n-th answer
func digestRef(n int) string {
	return fmt.Sprintf("Q%d_HASH", n)
}
