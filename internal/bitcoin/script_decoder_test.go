package bitcoin

import (
	"testing"

	"github.com/btcsuite/btcd/btcjson"
)

// genesisPkScript is the pay-to-pubkey script of the genesis coinbase.
const genesisPkScript = "4104678afdb0fe5548271967f1a67130b7105cd6a828e039" +
	"09a67962e0ea1f61deb649f6bc3f4cef38c4f35504e51ec112de5c384df7ba0b8d57" +
	"8a4c702b6bf11d5fac"

func vout(spk btcjson.ScriptPubKeyResult) btcjson.Vout {
	return btcjson.Vout{Value: 1, ScriptPubKey: spk}
}

func TestDecodeAddress(t *testing.T) {
	d, err := newScriptDecoder("mainnet")
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}

	tests := []struct {
		name string
		spk  btcjson.ScriptPubKeyResult
		want string
	}{
		{
			name: "modern single address field",
			spk:  btcjson.ScriptPubKeyResult{Address: "bc1qsingle"},
			want: "bc1qsingle",
		},
		{
			name: "legacy addresses list",
			spk:  btcjson.ScriptPubKeyResult{Addresses: []string{"1legacy"}},
			want: "1legacy",
		},
		{
			name: "address field wins over list",
			spk: btcjson.ScriptPubKeyResult{
				Address:   "bc1qsingle",
				Addresses: []string{"1other"},
			},
			want: "bc1qsingle",
		},
		{
			name: "bare multisig has no single owner",
			spk:  btcjson.ScriptPubKeyResult{Addresses: []string{"1a", "1b"}},
			want: "",
		},
		{
			name: "no address and no script",
			spk:  btcjson.ScriptPubKeyResult{},
			want: "",
		},
		{
			name: "pay to pubkey decoded from hex",
			spk:  btcjson.ScriptPubKeyResult{Hex: genesisPkScript},
			want: "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.decodeAddress(vout(tt.spk))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("decodeAddress = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeAddressBadHex(t *testing.T) {
	d, err := newScriptDecoder("mainnet")
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}
	if _, err := d.decodeAddress(vout(btcjson.ScriptPubKeyResult{Hex: "zz"})); err == nil {
		t.Fatal("expected hex decode error")
	}
}

func TestChainParamsForNetwork(t *testing.T) {
	for _, network := range []string{"main", "mainnet", "bitcoin", "testnet", "testnet3", "regtest", "signet"} {
		if _, err := chainParamsForNetwork(network); err != nil {
			t.Fatalf("network %q rejected: %v", network, err)
		}
	}
	if _, err := chainParamsForNetwork("litecoin"); err == nil {
		t.Fatal("expected unsupported network error")
	}
}
