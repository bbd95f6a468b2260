package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"BulletinDispatch/internal/domain"
)

var clientFlags struct {
	email    string
	phone    string
	address  string
	city     string
	province string
	taxID    string
}

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Manage the client directory",
}

var clientSetCmd = &cobra.Command{
	Use:   "set <client-key>",
	Short: "Create or replace a client's contact details",
	Args:  cobra.ExactArgs(1),
	RunE:  runClientSet,
}

func init() {
	f := clientSetCmd.Flags()
	f.StringVar(&clientFlags.email, "email", "", "Contact email; empty leaves the client without a recipient")
	f.StringVar(&clientFlags.phone, "phone", "", "Phone")
	f.StringVar(&clientFlags.address, "address", "", "Street address")
	f.StringVar(&clientFlags.city, "city", "", "City")
	f.StringVar(&clientFlags.province, "province", "", "Province")
	f.StringVar(&clientFlags.taxID, "tax-id", "", "Tax identifier")
	clientCmd.AddCommand(clientSetCmd)
}

func runClientSet(cmd *cobra.Command, args []string) error {
	application, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	c := domain.Client{
		Key:      args[0],
		Email:    clientFlags.email,
		Phone:    clientFlags.phone,
		Address:  clientFlags.address,
		City:     clientFlags.city,
		Province: clientFlags.province,
		TaxID:    clientFlags.taxID,
	}
	if err := application.SetClient(cmd.Context(), c); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Client %q saved\n", c.Key)
	return nil
}
