package core

import "testing"

func TestDeriveContractAddressIsDeterministicAndNonceSensitive(t *testing.T) {
	creator := AddrId{1}
	a0 := DeriveContractAddress(creator, 0)
	a0Again := DeriveContractAddress(creator, 0)
	a1 := DeriveContractAddress(creator, 1)
	if a0 != a0Again {
		t.Fatalf("address derivation is not deterministic")
	}
	if a0 == a1 {
		t.Fatalf("distinct nonces must derive distinct addresses")
	}
}

func TestDeployAssignsSequentialAddressesAndNonces(t *testing.T) {
	db := NewMemStore()
	r := NewContractRegistry(db)
	deployer := AddrId{7}

	c1, err := r.Deploy(deployer, []byte{0x00}, 1, 24*1024)
	if err != nil {
		t.Fatalf("deploy 1: %v", err)
	}
	c2, err := r.Deploy(deployer, []byte{0x01}, 2, 24*1024)
	if err != nil {
		t.Fatalf("deploy 2: %v", err)
	}
	if c1.Address == c2.Address {
		t.Fatalf("sequential deploys from the same deployer must land at distinct addresses")
	}

	loaded, err := r.Load(c1.Address)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(loaded.Code) != string(c1.Code) || loaded.Deployer != deployer {
		t.Fatalf("loaded contract does not match deployed contract")
	}
}

func TestDeployRejectsOversizeCode(t *testing.T) {
	db := NewMemStore()
	r := NewContractRegistry(db)
	_, err := r.Deploy(AddrId{1}, make([]byte, 100), 1, 50)
	if err == nil {
		t.Fatalf("expected oversize code to be rejected")
	}
}

func TestDeployRejectsEmptyCode(t *testing.T) {
	db := NewMemStore()
	r := NewContractRegistry(db)
	_, err := r.Deploy(AddrId{1}, nil, 1, 1000)
	if err == nil {
		t.Fatalf("expected empty code to be rejected")
	}
}

func TestContractCodecRoundTrip(t *testing.T) {
	c := &Contract{Address: AddrId{1}, Code: []byte{1, 2, 3, 4}, Deployer: AddrId{2}, DeployHeight: 42}
	raw := EncodeContract(c)
	got, err := DecodeContract(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Address != c.Address || got.Deployer != c.Deployer || got.DeployHeight != c.DeployHeight || string(got.Code) != string(c.Code) {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, c)
	}
}
