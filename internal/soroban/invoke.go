package soroban

import (
	"context"

	"github.com/pkg/errors"
	"github.com/stellar/go-stellar-sdk/txnbuild"
	"github.com/stellar/go-stellar-sdk/xdr"
)

type simulateRequest struct {
	Transaction string `json:"transaction"`
}

type simulateResult struct {
	XDR  string   `json:"xdr"`
	Auth []string `json:"auth"`
}

type simulateResponse struct {
	Error        string           `json:"error,omitempty"`
	Results      []simulateResult `json:"results"`
	LatestLedger uint32           `json:"latestLedger"`
}

// SimulationError is returned when the node ran the simulation and the contract call itself failed.
type SimulationError struct {
	Contract string
	Method   string
	Message  string
}

func (e *SimulationError) Error() string {
	return "simulate " + e.Contract + "." + e.Method + ": " + e.Message
}

// InvokeReadOnly simulates a contract call and returns its return value.
// Nothing is submitted to the network.
func (c *Client) InvokeReadOnly(ctx context.Context, contractID, method string, args ...xdr.ScVal) (xdr.ScVal, error) {
	envelope, err := c.buildInvokeEnvelope(contractID, method, args)
	if err != nil {
		return xdr.ScVal{}, err
	}

	var resp simulateResponse
	if err := c.rpc.CallResult(ctx, "simulateTransaction", simulateRequest{Transaction: envelope}, &resp); err != nil {
		return xdr.ScVal{}, errors.Wrapf(err, "simulate %s.%s", contractID, method)
	}
	if resp.Error != "" {
		return xdr.ScVal{}, &SimulationError{Contract: contractID, Method: method, Message: resp.Error}
	}
	if len(resp.Results) == 0 {
		return xdr.ScVal{}, errors.Errorf("simulate %s.%s: empty result", contractID, method)
	}

	val, err := DecodeScVal(resp.Results[0].XDR)
	if err != nil {
		return xdr.ScVal{}, errors.Wrapf(err, "simulate %s.%s", contractID, method)
	}
	return val, nil
}

func (c *Client) buildInvokeEnvelope(contractID, method string, args []xdr.ScVal) (string, error) {
	addr, err := ContractAddress(contractID)
	if err != nil {
		return "", err
	}
	if args == nil {
		args = []xdr.ScVal{}
	}

	op := &txnbuild.InvokeHostFunction{
		HostFunction: xdr.HostFunction{
			Type: xdr.HostFunctionTypeHostFunctionTypeInvokeContract,
			InvokeContract: &xdr.InvokeContractArgs{
				ContractAddress: addr,
				FunctionName:    xdr.ScSymbol(method),
				Args:            args,
			},
		},
		SourceAccount: c.source,
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: c.source, Sequence: 0},
		IncrementSequenceNum: true,
		Operations:           []txnbuild.Operation{op},
		BaseFee:              txnbuild.MinBaseFee,
		Preconditions:        txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()},
	})
	if err != nil {
		return "", errors.Wrap(err, "build invoke transaction")
	}
	envelope, err := tx.Base64()
	if err != nil {
		return "", errors.Wrap(err, "encode invoke transaction")
	}
	return envelope, nil
}
