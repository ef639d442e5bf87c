package mdns

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/lockpad/internal/domain"
)

type fakeRegistration struct {
	shutdown chan struct{}
}

func (r *fakeRegistration) Shutdown() {
	close(r.shutdown)
}

func testAdvertisement() domain.Advertisement {
	return domain.Advertisement{
		LocalName:        "lockpad-desk",
		CompanyID:        0x0059,
		ManufacturerData: []byte{0x01, 0x02, 0xAB},
		ServiceUUID:      domain.ServiceUUID,
		Port:             7420,
	}
}

func TestAdvertiseRegistersUntilCancelled(t *testing.T) {
	reg := &fakeRegistration{shutdown: make(chan struct{})}
	var gotInstance, gotService string
	var gotPort int
	var gotText []string

	a := NewAdvertiser(nil)
	a.register = func(instance, service, _ string, port int, text []string, _ []net.Interface) (registration, error) {
		gotInstance, gotService, gotPort, gotText = instance, service, port, text
		return reg, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.Advertise(ctx, testAdvertisement())
	}()

	select {
	case <-reg.shutdown:
		t.Fatal("shut down before cancel")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	require.NoError(t, <-done)
	<-reg.shutdown

	assert.Equal(t, "lockpad-desk", gotInstance)
	assert.Equal(t, ServiceType, gotService)
	assert.Equal(t, 7420, gotPort)
	assert.Contains(t, gotText, "company=0x0059")
	assert.Contains(t, gotText, "mfr=0102ab")
}

func TestAdvertiseRegisterError(t *testing.T) {
	a := NewAdvertiser(nil)
	a.register = func(string, string, string, int, []string, []net.Interface) (registration, error) {
		return nil, errors.New("no multicast interface")
	}

	err := a.Advertise(context.Background(), testAdvertisement())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no multicast interface")
}

func TestAdvertiseValidatesInput(t *testing.T) {
	a := NewAdvertiser(nil)
	a.register = func(string, string, string, int, []string, []net.Interface) (registration, error) {
		t.Fatal("register must not be called")
		return nil, nil
	}

	adv := testAdvertisement()
	adv.LocalName = " "
	require.Error(t, a.Advertise(context.Background(), adv))

	adv = testAdvertisement()
	adv.Port = 0
	require.Error(t, a.Advertise(context.Background(), adv))
}

func TestParseTXTRoundTrip(t *testing.T) {
	adv := testAdvertisement()
	got := parseTXT(append(adv.TXT(), "garbage", "company=zz"))

	assert.Equal(t, adv.LocalName, got.LocalName)
	assert.Equal(t, adv.CompanyID, got.CompanyID)
	assert.Equal(t, adv.ManufacturerData, got.ManufacturerData)
	assert.Equal(t, adv.ServiceUUID, got.ServiceUUID)
}

func TestEntryToPeripheral(t *testing.T) {
	entry := zeroconf.NewServiceEntry("lockpad-desk", ServiceType, Domain)
	entry.Port = 7420
	entry.Text = testAdvertisement().TXT()
	entry.AddrIPv4 = append(entry.AddrIPv4, net.IP{192, 168, 1, 20})

	p, ok := entryToPeripheral(entry)
	require.True(t, ok)
	assert.Equal(t, "192.168.1.20:7420", p.Address)
	assert.Equal(t, "lockpad-desk", p.Advertisement.LocalName)
	assert.Equal(t, 7420, p.Advertisement.Port)

	_, ok = entryToPeripheral(zeroconf.NewServiceEntry("bare", ServiceType, Domain))
	assert.False(t, ok)
}
