package bitcoin

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// scriptDecoder extracts a single owning address from ScriptPubKey
// results. Outputs whose script yields no address (or more than one, as
// with bare multisig) are indexed without address accounting.
type scriptDecoder struct {
	params *chaincfg.Params
}

func newScriptDecoder(network string) (*scriptDecoder, error) {
	params, err := chainParamsForNetwork(network)
	if err != nil {
		return nil, err
	}
	return &scriptDecoder{params: params}, nil
}

func (d *scriptDecoder) decodeAddress(vout btcjson.Vout) (string, error) {
	if vout.ScriptPubKey.Address != "" {
		return vout.ScriptPubKey.Address, nil
	}
	if len(vout.ScriptPubKey.Addresses) == 1 {
		return vout.ScriptPubKey.Addresses[0], nil
	}
	if len(vout.ScriptPubKey.Addresses) > 1 || vout.ScriptPubKey.Hex == "" {
		return "", nil
	}

	scriptBytes, err := hex.DecodeString(vout.ScriptPubKey.Hex)
	if err != nil {
		return "", err
	}
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(scriptBytes, d.params)
	if err != nil {
		return "", err
	}
	if len(addrs) != 1 {
		return "", nil
	}
	return addrs[0].EncodeAddress(), nil
}

func chainParamsForNetwork(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(network) {
	case "main", "mainnet", "bitcoin":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unsupported network %q", network)
	}
}
