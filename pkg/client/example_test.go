package client_test

import (
	"context"
	"errors"
	"fmt"

	"sirena/pkg/client"
	"sirena/pkg/proto/envelope"
)

func Example_newClient() {
	var conf client.Config
	conf.SetDefault()
	conf.Host = "127.0.0.1"
	conf.Port = 34323
	conf.ClientId = 1234
	conf.PrivateKeyPath = "/etc/sirena/client.pem"

	cli, err := client.New(conf)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer cli.Close()

	resp, err := cli.Query(context.Background(), envelope.NewQuery("order", []byte("<regnum>ABC123</regnum>")))
	switch {
	case errors.Is(err, client.ErrPultBusy):
		// every operator terminal of the agency is busy, try later
	case err != nil:
		fmt.Println(err)
	default:
		fmt.Println(resp.Data().Path("pnr", "regnum").Value())
	}
}

func Example_loadConfig() {
	conf, err := client.LoadConfig("/etc/sirena/client.toml")
	if err != nil {
		fmt.Println(err)
		return
	}
	cli, err := client.New(conf)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer cli.Close()

	ctx := context.Background()
	err = cli.Do(ctx, func(s client.ISession) error {
		if _, err := s.Query(ctx, envelope.NewQuery("order", []byte("<regnum>ABC123</regnum>"))); err != nil {
			return err
		}
		_, err := s.Query(ctx, envelope.NewQuery("pnr_status", []byte("<regnum>ABC123</regnum>")))
		return err
	})
	if err != nil {
		fmt.Println(err)
	}
}
