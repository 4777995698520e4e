package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/raspiblitz/blitzdash/internal/wallet"
)

var (
	receiveType    string
	receiveAmount  string
	receiveComment string

	sendAddress string
	sendAmount  string
	sendComment string

	amountUnit string
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Request a lightning invoice or onchain address",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, unit, err := walletClient()
		if err != nil {
			return err
		}

		invoiceType, err := wallet.ParseInvoiceType(receiveType)
		if err != nil {
			return err
		}
		amount, err := wallet.ParseAmount(receiveAmount, unit)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		address, err := client.Receive(ctx, wallet.NewReceiveRequest(invoiceType, amount, receiveComment))
		if err != nil {
			return err
		}

		fmt.Println(address)
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Pay an address through the node",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, unit, err := walletClient()
		if err != nil {
			return err
		}

		amount, err := wallet.ParseAmount(sendAmount, unit)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		res, err := client.SendPayment(ctx, wallet.SendRequest{
			Address: sendAddress,
			Amount:  amount,
			Comment: sendComment,
		})
		if err != nil {
			return err
		}

		fmt.Printf("✓ Sent %s to %s\n", wallet.FormatAmount(amount, unit), sendAddress)
		if res.PaymentID != "" {
			fmt.Printf("  Payment: %s (%s)\n", res.PaymentID, res.Status)
		}
		return nil
	},
}

func walletClient() (*wallet.Client, wallet.Unit, error) {
	unit := wallet.BTC
	switch strings.ToLower(amountUnit) {
	case "btc":
	case "sat", "sats":
		unit = wallet.Sat
	default:
		return nil, "", fmt.Errorf("unknown unit %q (want btc or sat)", amountUnit)
	}

	cfg, err := loadConfig(false)
	if err != nil {
		return nil, "", err
	}
	client, err := wallet.NewClient(cfg.APIURL, 0)
	if err != nil {
		return nil, "", err
	}
	return client, unit, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&amountUnit, "unit", "btc", "amount unit for receive and send: btc or sat")

	receiveCmd.Flags().StringVarP(&receiveType, "type", "t", string(wallet.Lightning), "lightning or onchain")
	receiveCmd.Flags().StringVarP(&receiveAmount, "amount", "a", "", "invoice amount (lightning only)")
	receiveCmd.Flags().StringVarP(&receiveComment, "comment", "m", "", "invoice comment (lightning only)")
	rootCmd.AddCommand(receiveCmd)

	sendCmd.Flags().StringVar(&sendAddress, "address", "", "destination address")
	sendCmd.Flags().StringVarP(&sendAmount, "amount", "a", "", "amount to send")
	sendCmd.Flags().StringVarP(&sendComment, "comment", "m", "", "payment comment")
	sendCmd.MarkFlagRequired("address")
	sendCmd.MarkFlagRequired("amount")
	rootCmd.AddCommand(sendCmd)
}
