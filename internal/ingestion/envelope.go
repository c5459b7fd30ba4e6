package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"round-indexer/internal/domain"
)

// ErrUnknownKind is returned when an envelope names an event kind this
// engine does not route. Callers log and drop; the stream keeps flowing.
var ErrUnknownKind = errors.New("unknown event kind")

// Envelope is the wire form of one decoded contract log as delivered by
// the upstream log-decoding service, and the storage form used by the
// event archive. Amounts travel as decimal strings to keep arbitrary
// precision intact.
type Envelope struct {
	Kind           string          `json:"kind"`
	Address        string          `json:"address"`
	BlockTimestamp int64           `json:"blockTimestamp"`
	TxHash         string          `json:"txHash"`
	LogIndex       uint32          `json:"logIndex"`
	Payload        json.RawMessage `json:"payload"`
}

type roundCreatedPayload struct {
	Founder          string `json:"founder"`
	EquityToken      string `json:"equityToken"`
	CompanyName      string `json:"companyName"`
	TargetRaise      string `json:"targetRaise"`
	EquityPercentage int64  `json:"equityPercentage"`
}

type investmentMadePayload struct {
	Investor       string `json:"investor"`
	USDCAmount     string `json:"usdcAmount"`
	TokensReceived string `json:"tokensReceived"`
	TotalRaised    string `json:"totalRaised"`
}

type roundCompletedPayload struct {
	TotalRaised      string `json:"totalRaised"`
	CompletionTime   int64  `json:"completionTime"`
	CompletionReason int16  `json:"completionReason"`
}

type founderWithdrawalPayload struct {
	Founder         string `json:"founder"`
	PrincipalAmount string `json:"principalAmount"`
	YieldAmount     string `json:"yieldAmount"`
	TotalAmount     string `json:"totalAmount"`
}

type investorYieldClaimedPayload struct {
	Investor string `json:"investor"`
	Amount   string `json:"amount"`
}

type yieldDistributedPayload struct {
	TotalYield    string `json:"totalYield"`
	FounderYield  string `json:"founderYield"`
	InvestorYield string `json:"investorYield"`
}

type platformFeeCollectedPayload struct {
	FeeAmount string `json:"feeAmount"`
}

// Decode converts the envelope into its typed event variant.
// Returns ErrUnknownKind for kinds outside the routed set.
func (e *Envelope) Decode() (domain.Event, error) {
	meta := domain.EventMeta{
		Address:        e.Address,
		BlockTimestamp: e.BlockTimestamp,
		TxHash:         e.TxHash,
		LogIndex:       e.LogIndex,
	}

	switch domain.EventKind(e.Kind) {
	case domain.KindRoundCreated:
		var p roundCreatedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.Kind, err)
		}
		targetRaise, err := parseAmount(p.TargetRaise)
		if err != nil {
			return nil, fmt.Errorf("decode %s targetRaise: %w", e.Kind, err)
		}
		return &domain.RoundCreated{
			EventMeta:        meta,
			Founder:          p.Founder,
			EquityToken:      p.EquityToken,
			CompanyName:      p.CompanyName,
			TargetRaise:      targetRaise,
			EquityPercentage: p.EquityPercentage,
		}, nil

	case domain.KindInvestmentMade:
		var p investmentMadePayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.Kind, err)
		}
		usdcAmount, err := parseAmount(p.USDCAmount)
		if err != nil {
			return nil, fmt.Errorf("decode %s usdcAmount: %w", e.Kind, err)
		}
		tokensReceived, err := parseAmount(p.TokensReceived)
		if err != nil {
			return nil, fmt.Errorf("decode %s tokensReceived: %w", e.Kind, err)
		}
		totalRaised, err := parseAmount(p.TotalRaised)
		if err != nil {
			return nil, fmt.Errorf("decode %s totalRaised: %w", e.Kind, err)
		}
		return &domain.InvestmentMade{
			EventMeta:      meta,
			Investor:       p.Investor,
			USDCAmount:     usdcAmount,
			TokensReceived: tokensReceived,
			TotalRaised:    totalRaised,
		}, nil

	case domain.KindRoundCompleted:
		var p roundCompletedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.Kind, err)
		}
		totalRaised, err := parseAmount(p.TotalRaised)
		if err != nil {
			return nil, fmt.Errorf("decode %s totalRaised: %w", e.Kind, err)
		}
		return &domain.RoundCompleted{
			EventMeta:        meta,
			TotalRaised:      totalRaised,
			CompletionTime:   p.CompletionTime,
			CompletionReason: p.CompletionReason,
		}, nil

	case domain.KindFounderWithdrawal:
		var p founderWithdrawalPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.Kind, err)
		}
		principal, err := parseAmount(p.PrincipalAmount)
		if err != nil {
			return nil, fmt.Errorf("decode %s principalAmount: %w", e.Kind, err)
		}
		yield, err := parseAmount(p.YieldAmount)
		if err != nil {
			return nil, fmt.Errorf("decode %s yieldAmount: %w", e.Kind, err)
		}
		total, err := parseAmount(p.TotalAmount)
		if err != nil {
			return nil, fmt.Errorf("decode %s totalAmount: %w", e.Kind, err)
		}
		return &domain.FounderWithdrawal{
			EventMeta:       meta,
			Founder:         p.Founder,
			PrincipalAmount: principal,
			YieldAmount:     yield,
			TotalAmount:     total,
		}, nil

	case domain.KindInvestorYieldClaimed:
		var p investorYieldClaimedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.Kind, err)
		}
		amount, err := parseAmount(p.Amount)
		if err != nil {
			return nil, fmt.Errorf("decode %s amount: %w", e.Kind, err)
		}
		return &domain.InvestorYieldClaimed{
			EventMeta: meta,
			Investor:  p.Investor,
			Amount:    amount,
		}, nil

	case domain.KindYieldDistributed:
		var p yieldDistributedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.Kind, err)
		}
		totalYield, err := parseAmount(p.TotalYield)
		if err != nil {
			return nil, fmt.Errorf("decode %s totalYield: %w", e.Kind, err)
		}
		founderYield, err := parseAmount(p.FounderYield)
		if err != nil {
			return nil, fmt.Errorf("decode %s founderYield: %w", e.Kind, err)
		}
		investorYield, err := parseAmount(p.InvestorYield)
		if err != nil {
			return nil, fmt.Errorf("decode %s investorYield: %w", e.Kind, err)
		}
		return &domain.YieldDistributed{
			EventMeta:     meta,
			TotalYield:    totalYield,
			FounderYield:  founderYield,
			InvestorYield: investorYield,
		}, nil

	case domain.KindPlatformFeeCollected:
		var p platformFeeCollectedPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", e.Kind, err)
		}
		feeAmount, err := parseAmount(p.FeeAmount)
		if err != nil {
			return nil, fmt.Errorf("decode %s feeAmount: %w", e.Kind, err)
		}
		return &domain.PlatformFeeCollected{
			EventMeta: meta,
			FeeAmount: feeAmount,
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
}

// Encode converts a typed event back to its envelope form.
func Encode(ev domain.Event) (*Envelope, error) {
	meta := ev.Meta()

	var payload any
	switch e := ev.(type) {
	case *domain.RoundCreated:
		payload = roundCreatedPayload{
			Founder:          e.Founder,
			EquityToken:      e.EquityToken,
			CompanyName:      e.CompanyName,
			TargetRaise:      amountString(e.TargetRaise),
			EquityPercentage: e.EquityPercentage,
		}
	case *domain.InvestmentMade:
		payload = investmentMadePayload{
			Investor:       e.Investor,
			USDCAmount:     amountString(e.USDCAmount),
			TokensReceived: amountString(e.TokensReceived),
			TotalRaised:    amountString(e.TotalRaised),
		}
	case *domain.RoundCompleted:
		payload = roundCompletedPayload{
			TotalRaised:      amountString(e.TotalRaised),
			CompletionTime:   e.CompletionTime,
			CompletionReason: e.CompletionReason,
		}
	case *domain.FounderWithdrawal:
		payload = founderWithdrawalPayload{
			Founder:         e.Founder,
			PrincipalAmount: amountString(e.PrincipalAmount),
			YieldAmount:     amountString(e.YieldAmount),
			TotalAmount:     amountString(e.TotalAmount),
		}
	case *domain.InvestorYieldClaimed:
		payload = investorYieldClaimedPayload{
			Investor: e.Investor,
			Amount:   amountString(e.Amount),
		}
	case *domain.YieldDistributed:
		payload = yieldDistributedPayload{
			TotalYield:    amountString(e.TotalYield),
			FounderYield:  amountString(e.FounderYield),
			InvestorYield: amountString(e.InvestorYield),
		}
	case *domain.PlatformFeeCollected:
		payload = platformFeeCollectedPayload{
			FeeAmount: amountString(e.FeeAmount),
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, ev)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", ev.Kind(), err)
	}

	return &Envelope{
		Kind:           string(ev.Kind()),
		Address:        meta.Address,
		BlockTimestamp: meta.BlockTimestamp,
		TxHash:         meta.TxHash,
		LogIndex:       meta.LogIndex,
		Payload:        raw,
	}, nil
}

// ToArchived converts a typed event into its archive row.
func ToArchived(ev domain.Event, receivedAt int64) (*domain.ArchivedEvent, error) {
	env, err := Encode(ev)
	if err != nil {
		return nil, err
	}
	return &domain.ArchivedEvent{
		Kind:           env.Kind,
		Address:        env.Address,
		TxHash:         env.TxHash,
		LogIndex:       env.LogIndex,
		BlockTimestamp: env.BlockTimestamp,
		Payload:        env.Payload,
		ReceivedAt:     receivedAt,
	}, nil
}

// DecodeArchived converts an archive row back into its typed event.
func DecodeArchived(e *domain.ArchivedEvent) (domain.Event, error) {
	env := Envelope{
		Kind:           e.Kind,
		Address:        e.Address,
		BlockTimestamp: e.BlockTimestamp,
		TxHash:         e.TxHash,
		LogIndex:       e.LogIndex,
		Payload:        e.Payload,
	}
	return env.Decode()
}

// parseAmount parses a decimal string into *big.Int. Empty strings read
// as zero; anything else must be a base-10 integer.
func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// amountString renders an amount for the wire, treating nil as zero.
func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
