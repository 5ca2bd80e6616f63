package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tallyhq/tally/pkg/coordinator"
	"github.com/tallyhq/tally/pkg/engine"
	"github.com/tallyhq/tally/pkg/queue"
	"github.com/tallyhq/tally/pkg/remote"
	"github.com/tallyhq/tally/pkg/storage"
	"github.com/tallyhq/tally/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open local store: %v", err)
		}
		defer store.Close()

		q := queue.New(store)
		pending, err := q.Count()
		if err != nil {
			return err
		}
		all, err := q.List()
		if err != nil {
			return err
		}
		dead := len(all) - pending

		remoteStore := remote.NewHTTPStore(cfg.Remote.URL, cfg.Remote.Timeout.Std())
		probeCtx, cancel := context.WithTimeout(context.Background(), cfg.Remote.Timeout.Std())
		defer cancel()
		online := remoteStore.Check(probeCtx) == nil

		fmt.Printf("Remote:             %s\n", cfg.Remote.URL)
		if online {
			fmt.Println("Connectivity:       online")
		} else {
			fmt.Println("Connectivity:       offline")
		}
		fmt.Printf("Pending operations: %d\n", pending)
		fmt.Printf("Dead operations:    %d\n", dead)
		return nil
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the pending-operation queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued operations in replay order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open local store: %v", err)
		}
		defer store.Close()

		ops, err := queue.New(store).List()
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Println("Queue is empty.")
			return nil
		}

		fmt.Printf("%-36s  %-8s  %-14s  %-8s  %-7s  %s\n",
			"ID", "KIND", "ENTITY", "STATUS", "RETRIES", "ENQUEUED")
		for _, op := range ops {
			fmt.Printf("%-36s  %-8s  %-14s  %-8s  %-7d  %s\n",
				op.ID, op.Kind, op.EntityType, op.Status, op.RetryCount,
				op.EnqueuedAt.Format("2006-01-02 15:04:05"))
			if op.LastError != "" {
				fmt.Printf("    last error: %s\n", op.LastError)
			}
		}
		return nil
	},
}

var queueCancelCmd = &cobra.Command{
	Use:   "cancel <operation-id>",
	Short: "Remove a queued operation without replaying it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open local store: %v", err)
		}
		defer store.Close()

		if err := queue.New(store).Cancel(args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Operation %s cancelled\n", args[0])
		return nil
	},
}

var (
	applyType    string
	applyKind    string
	applyTarget  string
	applyPayload string
	applyFile    string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a single mutation",
	Long: `Apply a single mutation through the engine. While online it goes to
the remote store directly; while offline it applies to the local cache
and queues for replay.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		payload := []byte(applyPayload)
		if applyFile != "" {
			payload, err = os.ReadFile(applyFile)
			if err != nil {
				return fmt.Errorf("read payload: %v", err)
			}
		}

		remoteStore := remote.NewHTTPStore(cfg.Remote.URL, cfg.Remote.Timeout.Std())
		probeCtx, cancelProbe := context.WithTimeout(context.Background(), cfg.Remote.Timeout.Std())
		reachable := remoteStore.Check(probeCtx) == nil
		cancelProbe()

		eng, err := engine.New(cfg, remoteStore, reachable)
		if err != nil {
			return err
		}
		defer eng.Stop()

		res, err := eng.ApplyMutation(context.Background(), coordinator.Mutation{
			EntityType: types.EntityType(applyType),
			Kind:       types.OpKind(applyKind),
			TargetID:   applyTarget,
			Payload:    payload,
		})
		if err != nil {
			return err
		}

		if res.Optimistic {
			fmt.Printf("✓ Mutation queued for sync (id: %s)\n", res.ID)
		} else {
			fmt.Printf("✓ Mutation applied (id: %s)\n", res.ID)
		}
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <entity-type>",
	Short: "Pull an entity type from the remote store into the cache",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		remoteStore := remote.NewHTTPStore(cfg.Remote.URL, cfg.Remote.Timeout.Std())
		eng, err := engine.New(cfg, remoteStore, true)
		if err != nil {
			return err
		}
		defer eng.Stop()

		if err := eng.Refresh(context.Background(), types.EntityType(args[0])); err != nil {
			return err
		}
		fmt.Printf("✓ Refreshed %s\n", args[0])
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueCancelCmd)

	applyCmd.Flags().StringVar(&applyType, "type", "", "entity type (accounts, transactions, records, members)")
	applyCmd.Flags().StringVar(&applyKind, "kind", "create", "mutation kind (create, update, delete)")
	applyCmd.Flags().StringVar(&applyTarget, "target", "", "target document id for update/delete")
	applyCmd.Flags().StringVar(&applyPayload, "payload", "", "JSON document payload")
	applyCmd.Flags().StringVarP(&applyFile, "file", "f", "", "read payload from file")
	applyCmd.MarkFlagRequired("type")
}
