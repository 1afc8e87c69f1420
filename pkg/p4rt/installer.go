// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package p4rt

import (
	"context"
	"fmt"

	"github.com/onosproject/onos-lib-go/pkg/certs"
	"github.com/onosproject/onos-lib-go/pkg/errors"
	"github.com/onosproject/p4bench/pkg/entries"
	"github.com/onosproject/p4bench/pkg/p4info"
	"github.com/onosproject/p4bench/pkg/topo"
	p4api "github.com/p4lang/p4runtime/go/p4/v1"
	"google.golang.org/genproto/googleapis/rpc/code"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Installer writes table entries to switches over P4Runtime
type Installer struct {
	dialOpts   []grpc.DialOption
	electionID *p4api.Uint128
	deviceID   uint64
}

// InstallerOption configures an installer
type InstallerOption func(i *Installer)

// WithDialOptions replaces the default, insecure, gRPC dial options
func WithDialOptions(opts ...grpc.DialOption) InstallerOption {
	return func(i *Installer) {
		i.dialOpts = opts
	}
}

// WithElectionID sets the election ID used to become primary controller of the switches
func WithElectionID(high uint64, low uint64) InstallerOption {
	return func(i *Installer) {
		i.electionID = &p4api.Uint128{High: high, Low: low}
	}
}

// WithDeviceID sets the P4Runtime device ID of the switches
func WithDeviceID(id uint64) InstallerOption {
	return func(i *Installer) {
		i.deviceID = id
	}
}

// DialOptions returns the gRPC dial options for reaching the switches: plaintext if noTLS is set,
// otherwise TLS with the given client key pair, or with the default onos client certificate if
// either path is empty. Server certificates are not verified.
func DialOptions(noTLS bool, certPath string, keyPath string) ([]grpc.DialOption, error) {
	if noTLS {
		return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, nil
	}
	if certPath == "" || keyPath == "" {
		certPath, keyPath = "", ""
	}
	opts, err := certs.HandleCertPaths("", keyPath, certPath, true)
	if err != nil {
		return nil, errors.NewInvalid("Unable to load TLS client certificate: %v", err)
	}
	return opts, nil
}

// NewInstaller creates a new table entry installer
func NewInstaller(opts ...InstallerOption) *Installer {
	i := &Installer{
		dialOpts:   []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
		electionID: &p4api.Uint128{High: 0, Low: 1},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install connects to the P4Runtime server at the given address, becomes its primary controller
// and inserts the given table entries in a single write. Entries are translated before connecting;
// nothing is written if any of them cannot be.
func (i *Installer) Install(ctx context.Context, address string, info *p4info.Info, tableEntries []entries.TableEntry) error {
	updates := make([]*p4api.Update, 0, len(tableEntries))
	for _, entry := range tableEntries {
		te, err := BuildTableEntry(info, entry)
		if err != nil {
			return err
		}
		updates = append(updates, &p4api.Update{
			Type:   p4api.Update_INSERT,
			Entity: &p4api.Entity{Entity: &p4api.Entity_TableEntry{TableEntry: te}},
		})
	}

	log.Infof("%s: connecting...", address)
	conn, err := grpc.DialContext(ctx, address, i.dialOpts...)
	if err != nil {
		return err
	}
	defer conn.Close()
	client := p4api.NewP4RuntimeClient(conn)

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := i.arbitrate(streamCtx, client, address); err != nil {
		return err
	}

	if len(updates) == 0 {
		return nil
	}
	_, err = client.Write(ctx, &p4api.WriteRequest{
		DeviceId:   i.deviceID,
		ElectionId: i.electionID,
		Updates:    updates,
		Atomicity:  p4api.WriteRequest_CONTINUE_ON_ERROR,
	})
	if err != nil {
		log.Warnf("%s: unable to write %d table entries: %v", address, len(updates), err)
		return err
	}
	log.Infof("%s: installed %d table entries", address, len(updates))
	return nil
}

// Establishes the stream and issues mastership arbitration; the stream stays open until ctx is done
func (i *Installer) arbitrate(ctx context.Context, client p4api.P4RuntimeClient, address string) error {
	stream, err := client.StreamChannel(ctx)
	if err != nil {
		return err
	}
	err = stream.Send(&p4api.StreamMessageRequest{
		Update: &p4api.StreamMessageRequest_Arbitration{
			Arbitration: &p4api.MasterArbitrationUpdate{
				DeviceId:   i.deviceID,
				ElectionId: i.electionID,
			},
		},
	})
	if err != nil {
		return err
	}

	msg, err := stream.Recv()
	if err != nil {
		return err
	}
	mar := msg.GetArbitration()
	if mar == nil {
		return errors.NewInvalid("%s: did not receive mastership arbitration", address)
	}
	if mar.Status != nil && mar.Status.Code != int32(code.Code_OK) {
		return errors.NewForbidden("%s: mastership refused: %s", address, mar.Status.Message)
	}
	if mar.ElectionId == nil || mar.ElectionId.High != i.electionID.High || mar.ElectionId.Low != i.electionID.Low {
		return errors.NewForbidden("%s: did not win election", address)
	}
	return nil
}

// InstallSetup installs the table entries of every switch in the setup that has a P4Info path and
// table entries, using host and the switch server port as the address. It stops at the first failure.
func (i *Installer) InstallSetup(ctx context.Context, host string, setup *topo.Setup, schemas topo.SchemaLoader) error {
	for _, sw := range setup.Switches {
		if sw.P4InfoPath == "" || len(sw.TableEntries) == 0 {
			log.Debugf("Switch %s: nothing to install", sw.Name)
			continue
		}
		info, err := schemas.Load(sw.P4InfoPath)
		if err != nil {
			return err
		}
		if err := i.Install(ctx, fmt.Sprintf("%s:%d", host, sw.ServerPort), info, sw.TableEntries); err != nil {
			log.Warnf("Switch %s: unable to install table entries: %v", sw.Name, err)
			return err
		}
	}
	return nil
}
