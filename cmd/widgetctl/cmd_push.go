package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/toolink/widgets/pubsub"
)

var (
	flagPushAddr    string
	flagPushRedis   string
	flagPushPrefix  string
	flagPushTimeout time.Duration
)

var pushCmd = &cobra.Command{
	Use:   "push EVENT VALUE",
	Short: "Push a value to a running host over gRPC or Redis",
	Long: `Push a value to the listener of EVENT in a running host.

VALUE is read as JSON when it parses, and as a plain string otherwise.
With --addr the push goes to one host's gRPC gateway; with --redis it is
published to every host relaying that Redis server.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(zerolog.InfoLevel)
		event, value := args[0], parseValue(args[1])

		ctx, cancel := context.WithTimeout(commandContext(cmd), flagPushTimeout)
		defer cancel()

		switch {
		case flagPushAddr != "" && flagPushRedis != "":
			return errors.New("--addr and --redis are mutually exclusive")
		case flagPushAddr != "":
			conn, err := grpc.NewClient(flagPushAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				return fmt.Errorf("dial %s: %w", flagPushAddr, err)
			}
			defer conn.Close()

			reply, err := pubsub.NewChannelClient(conn).Push(ctx, event, value)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s delivered=%t\n", reply.ID, reply.Delivered)
			return nil
		case flagPushRedis != "":
			client := redis.NewClient(&redis.Options{Addr: flagPushRedis})
			defer client.Close()

			relay := pubsub.NewRedisRelay(client, nil, pubsub.WithChannelPrefix(flagPushPrefix))
			return relay.Publish(ctx, event, value)
		default:
			return errors.New("one of --addr or --redis is required")
		}
	},
}

func init() {
	pushCmd.Flags().StringVar(&flagPushAddr, "addr", "", "gRPC address of the host")
	pushCmd.Flags().StringVar(&flagPushRedis, "redis", "", "Redis address to publish on")
	pushCmd.Flags().StringVar(&flagPushPrefix, "prefix", pubsub.DefaultChannelPrefix, "Redis channel prefix")
	pushCmd.Flags().DurationVar(&flagPushTimeout, "timeout", 5*time.Second, "push timeout")
}
