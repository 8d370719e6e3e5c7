package rpc

import (
	"encoding/hex"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"supernode/journal"
	"supernode/native/supernode"
	"supernode/observability"
)

type poolParams struct {
	Pool string `json:"pool"`
}

type createParams struct {
	Owner    string `json:"owner"`
	Timezone string `json:"timezone"`
}

type depositParams struct {
	Pool     string `json:"pool"`
	Track    string `json:"track"`
	Provider string `json:"provider"`
	Amount   string `json:"amount"`
}

type limitParams struct {
	Pool     string `json:"pool"`
	Caller   string `json:"caller"`
	Track    string `json:"track"`
	Provider string `json:"provider"`
	Limit    string `json:"limit"`
}

type operatorLimitParams struct {
	Pool     string `json:"pool"`
	Caller   string `json:"caller"`
	Operator string `json:"operator"`
	Limit    uint64 `json:"limit"`
}

type minipoolParams struct {
	Pool     string `json:"pool"`
	Operator string `json:"operator"`
}

type feesParams struct {
	Pool           string `json:"pool"`
	Caller         string `json:"caller"`
	PoolNative     string `json:"poolNative"`
	PoolToken      string `json:"poolToken"`
	OperatorNative string `json:"operatorNative"`
	OperatorToken  string `json:"operatorToken"`
}

type averageNodeFeeParams struct {
	Pool string `json:"pool"`
	Fee  string `json:"fee"`
}

type distributorParams struct {
	Pool        string `json:"pool"`
	Distributor string `json:"distributor"`
}

type trackParams struct {
	Pool  string `json:"pool"`
	Track string `json:"track"`
}

type claimParams struct {
	Pool     string `json:"pool"`
	Track    string `json:"track"`
	Provider string `json:"provider"`
}

type buyoutParams struct {
	Pool   string `json:"pool"`
	Track  string `json:"track"`
	Seller string `json:"seller"`
	Buyer  string `json:"buyer"`
	Amount string `json:"amount"`
}

type buyoutLimitParams struct {
	Pool   string `json:"pool"`
	Track  string `json:"track"`
	Caller string `json:"caller"`
	Limit  string `json:"limit"`
}

type accountParams struct {
	Pool    string `json:"pool"`
	Address string `json:"address"`
}

type eventsParams struct {
	Pool     string `json:"pool"`
	Type     string `json:"type"`
	AfterSeq uint64 `json:"afterSeq"`
	Limit    int    `json:"limit"`
}

type positionResult struct {
	Share       string `json:"share"`
	Limit       string `json:"limit"`
	BuyoutLimit string `json:"buyoutLimit"`
	Unclaimed   string `json:"unclaimed"`
}

type accountResult struct {
	Address       string         `json:"address"`
	Native        positionResult `json:"native"`
	Token         positionResult `json:"token"`
	Minipools     uint64         `json:"minipools"`
	OperatorLimit uint64         `json:"operatorLimit"`
}

type feesResult struct {
	PoolNative     string `json:"poolNative"`
	PoolToken      string `json:"poolToken"`
	OperatorNative string `json:"operatorNative"`
	OperatorToken  string `json:"operatorToken"`
}

type poolResult struct {
	Address        string     `json:"address"`
	Owner          string     `json:"owner"`
	Timezone       string     `json:"timezone"`
	CreatedAt      int64      `json:"createdAt"`
	Fees           feesResult `json:"fees"`
	TotalNative    string     `json:"totalNative"`
	TotalToken     string     `json:"totalToken"`
	TotalMinipools uint64     `json:"totalMinipools"`
	AverageNodeFee string     `json:"averageNodeFee"`
	Distributor    string     `json:"distributor,omitempty"`
	Actors         []string   `json:"actors"`
	Digest         string     `json:"digest,omitempty"`
}

type creditResult struct {
	Address        string `json:"address"`
	Share          string `json:"share"`
	Minipools      uint64 `json:"minipools"`
	ShareCredit    string `json:"shareCredit"`
	PoolFeeCredit  string `json:"poolFeeCredit"`
	OperatorCredit string `json:"operatorCredit"`
	Total          string `json:"total"`
}

type distributionResult struct {
	Pool           string         `json:"pool"`
	Track          string         `json:"track"`
	Applied        bool           `json:"applied"`
	Swept          string         `json:"swept"`
	Reward         string         `json:"reward"`
	PoolCut        string         `json:"poolCut"`
	OperatorCut    string         `json:"operatorCut"`
	PerMinipool    string         `json:"perMinipool"`
	Residual       string         `json:"residual"`
	Credited       string         `json:"credited"`
	Dust           string         `json:"dust"`
	TotalShares    string         `json:"totalShares"`
	TotalMinipools uint64         `json:"totalMinipools"`
	Credits        []creditResult `json:"credits"`
	Timestamp      int64          `json:"timestamp"`
}

type buyoutResult struct {
	Pool       string `json:"pool"`
	Track      string `json:"track"`
	Seller     string `json:"seller"`
	Buyer      string `json:"buyer"`
	Amount     string `json:"amount"`
	AutoClaim  string `json:"autoClaim"`
	PaidSeller string `json:"paidSeller"`
}

type eventResult struct {
	Seq        uint64            `json:"seq"`
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Pool       string            `json:"pool,omitempty"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  string            `json:"createdAt"`
}

func positionResultFrom(p supernode.Position) positionResult {
	return positionResult{
		Share:       bigString(p.Share),
		Limit:       bigString(p.Limit),
		BuyoutLimit: bigString(p.BuyoutLimit),
		Unclaimed:   bigString(p.Unclaimed),
	}
}

func accountResultFrom(acc *supernode.Account) accountResult {
	return accountResult{
		Address:       acc.Address.Hex(),
		Native:        positionResultFrom(acc.Native),
		Token:         positionResultFrom(acc.Token),
		Minipools:     acc.Minipools,
		OperatorLimit: acc.OperatorLimit,
	}
}

func addressStrings(addrs []common.Address) []string {
	out := make([]string, len(addrs))
	for i, addr := range addrs {
		out[i] = addr.Hex()
	}
	return out
}

func (s *Server) poolResultFrom(pool *supernode.Pool) poolResult {
	res := poolResult{
		Address:   pool.Address.Hex(),
		Owner:     pool.Owner.Hex(),
		Timezone:  pool.Timezone,
		CreatedAt: pool.CreatedAt,
		Fees: feesResult{
			PoolNative:     bigString(pool.Fees.PoolNative),
			PoolToken:      bigString(pool.Fees.PoolToken),
			OperatorNative: bigString(pool.Fees.OperatorNative),
			OperatorToken:  bigString(pool.Fees.OperatorToken),
		},
		TotalNative:    bigString(pool.TotalNative),
		TotalToken:     bigString(pool.TotalToken),
		TotalMinipools: pool.TotalMinipools,
		AverageNodeFee: bigString(pool.AverageNodeFee),
		Actors:         addressStrings(pool.Actors.Addresses()),
	}
	if pool.HasDistributor() {
		res.Distributor = pool.Distributor.Hex()
	}
	if s.digester != nil {
		digest, err := s.digester.SupernodePoolDigest(pool.Address)
		if err != nil {
			s.logger.Warn("pool digest unavailable", "pool", pool.Address.Hex(), "error", err)
		} else {
			res.Digest = "0x" + hex.EncodeToString(digest[:])
		}
	}
	return res
}

func distributionResultFrom(d *supernode.Distribution) distributionResult {
	credits := make([]creditResult, len(d.Credits))
	for i, c := range d.Credits {
		credits[i] = creditResult{
			Address:        c.Address.Hex(),
			Share:          bigString(c.Share),
			Minipools:      c.Minipools,
			ShareCredit:    bigString(c.ShareCredit),
			PoolFeeCredit:  bigString(c.PoolFeeCredit),
			OperatorCredit: bigString(c.OperatorCredit),
			Total:          bigString(c.Total),
		}
	}
	return distributionResult{
		Pool:           d.Pool.Hex(),
		Track:          d.Track.String(),
		Applied:        d.Applied,
		Swept:          bigString(d.Swept),
		Reward:         bigString(d.Reward),
		PoolCut:        bigString(d.PoolCut),
		OperatorCut:    bigString(d.OperatorCut),
		PerMinipool:    bigString(d.PerMinipool),
		Residual:       bigString(d.Residual),
		Credited:       bigString(d.Credited),
		Dust:           bigString(d.Dust),
		TotalShares:    bigString(d.TotalShares),
		TotalMinipools: d.TotalMinipools,
		Credits:        credits,
		Timestamp:      d.Timestamp,
	}
}

// record reports the outcome of a mutating call to the ledger metrics and
// returns err unchanged.
func record(operation, track string, err error) error {
	observability.Ledger().RecordOperation(operation, track, err)
	return err
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params createParams
	if !decodeParams(w, req, &params) {
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		invalidParam(w, req, "owner", err)
		return
	}
	if err := s.authorize(r, owner); err != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	pool, err := s.engine.CreatePool(owner, params.Timezone)
	if record("create", "", err) != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	writeResult(w, req.ID, s.poolResultFrom(pool))
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params depositParams
	if !decodeParams(w, req, &params) {
		return
	}
	pool, err := parseAddress(params.Pool)
	if err != nil {
		invalidParam(w, req, "pool", err)
		return
	}
	track, err := parseTrack(params.Track)
	if err != nil {
		invalidParam(w, req, "track", err)
		return
	}
	provider, err := parseAddress(params.Provider)
	if err != nil {
		invalidParam(w, req, "provider", err)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		invalidParam(w, req, "amount", err)
		return
	}
	if err := s.authorize(r, provider); err != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	acc, err := s.engine.Deposit(pool, track, provider, amount)
	if record("deposit", track.String(), err) != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	writeResult(w, req.ID, accountResultFrom(acc))
}

func (s *Server) handleSetLimit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params limitParams
	if !decodeParams(w, req, &params) {
		return
	}
	pool, err := parseAddress(params.Pool)
	if err != nil {
		invalidParam(w, req, "pool", err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		invalidParam(w, req, "caller", err)
		return
	}
	track, err := parseTrack(params.Track)
	if err != nil {
		invalidParam(w, req, "track", err)
		return
	}
	provider, err := parseAddress(params.Provider)
	if err != nil {
		invalidParam(w, req, "provider", err)
		return
	}
	limit, err := parseAmount(params.Limit)
	if err != nil {
		invalidParam(w, req, "limit", err)
		return
	}
	if err := s.authorize(r, caller); err != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	err = s.engine.SetLimit(pool, caller, track, provider, limit)
	if record("set_limit", track.String(), err) != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleSetOperatorLimit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params operatorLimitParams
	if !decodeParams(w, req, &params) {
		return
	}
	pool, err := parseAddress(params.Pool)
	if err != nil {
		invalidParam(w, req, "pool", err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		invalidParam(w, req, "caller", err)
		return
	}
	operator, err := parseAddress(params.Operator)
	if err != nil {
		invalidParam(w, req, "operator", err)
		return
	}
	if err := s.authorize(r, caller); err != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	err = s.engine.SetOperatorLimit(pool, caller, operator, params.Limit)
	if record("set_operator_limit", "", err) != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleMinipoolCreated(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.minipoolSignal(w, req, "minipool_created", s.engine.RecordMinipoolCreated)
}

func (s *Server) handleMinipoolDestroyed(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	s.minipoolSignal(w, req, "minipool_destroyed", s.engine.RecordMinipoolDestroyed)
}

func (s *Server) minipoolSignal(w http.ResponseWriter, req *RPCRequest, operation string, apply func(pool, operator common.Address) (*supernode.Account, error)) {
	var params minipoolParams
	if !decodeParams(w, req, &params) {
		return
	}
	pool, err := parseAddress(params.Pool)
	if err != nil {
		invalidParam(w, req, "pool", err)
		return
	}
	operator, err := parseAddress(params.Operator)
	if err != nil {
		invalidParam(w, req, "operator", err)
		return
	}
	acc, err := apply(pool, operator)
	if record(operation, "", err) != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	writeResult(w, req.ID, accountResultFrom(acc))
}

func (s *Server) handleSetFees(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params feesParams
	if !decodeParams(w, req, &params) {
		return
	}
	pool, err := parseAddress(params.Pool)
	if err != nil {
		invalidParam(w, req, "pool", err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		invalidParam(w, req, "caller", err)
		return
	}
	fees := supernode.ZeroFees()
	for _, field := range []struct {
		name string
		raw  string
		dst  **big.Int
	}{
		{"poolNative", params.PoolNative, &fees.PoolNative},
		{"poolToken", params.PoolToken, &fees.PoolToken},
		{"operatorNative", params.OperatorNative, &fees.OperatorNative},
		{"operatorToken", params.OperatorToken, &fees.OperatorToken},
	} {
		if strings.TrimSpace(field.raw) == "" {
			continue
		}
		value, err := parseAmount(field.raw)
		if err != nil {
			invalidParam(w, req, field.name, err)
			return
		}
		*field.dst = value
	}
	if err := s.authorize(r, caller); err != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	err = s.engine.SetFees(pool, caller, fees)
	if record("set_fees", "", err) != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleSetAverageNodeFee(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params averageNodeFeeParams
	if !decodeParams(w, req, &params) {
		return
	}
	pool, err := parseAddress(params.Pool)
	if err != nil {
		invalidParam(w, req, "pool", err)
		return
	}
	fee, err := parseAmount(params.Fee)
	if err != nil {
		invalidParam(w, req, "fee", err)
		return
	}
	err = s.engine.SetAverageNodeFee(pool, fee)
	if record("set_average_node_fee", "", err) != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleSetDistributor(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params distributorParams
	if !decodeParams(w, req, &params) {
		return
	}
	pool, err := parseAddress(params.Pool)
	if err != nil {
		invalidParam(w, req, "pool", err)
		return
	}
	var distributor common.Address
	if strings.TrimSpace(params.Distributor) != "" {
		distributor, err = parseAddress(params.Distributor)
		if err != nil {
			invalidParam(w, req, "distributor", err)
			return
		}
	}
	err = s.engine.SetDistributor(pool, distributor)
	if record("set_distributor", "", err) != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleDistribute(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params trackParams
	if !decodeParams(w, req, &params) {
		return
	}
	pool, err := parseAddress(params.Pool)
	if err != nil {
		invalidParam(w, req, "pool", err)
		return
	}
	track, err := parseTrack(params.Track)
	if err != nil {
		invalidParam(w, req, "track", err)
		return
	}
	d, err := s.engine.Distribute(pool, track)
	if record("distribute", track.String(), err) != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	if d.Applied {
		s.rememberDistribution(d)
		observability.Ledger().RecordDistribution(track.String(), d.Credited, d.Dust)
		observability.Ledger().SetActors(pool.Hex(), len(d.Credits))
	}
	writeResult(w, req.ID, distributionResultFrom(d))
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params claimParams
	if !decodeParams(w, req, &params) {
		return
	}
	pool, err := parseAddress(params.Pool)
	if err != nil {
		invalidParam(w, req, "pool", err)
		return
	}
	track, err := parseTrack(params.Track)
	if err != nil {
		invalidParam(w, req, "track", err)
		return
	}
	provider, err := parseAddress(params.Provider)
	if err != nil {
		invalidParam(w, req, "provider", err)
		return
	}
	if err := s.authorize(r, provider); err != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	amount, err := s.engine.Claim(pool, track, provider)
	if record("claim", track.String(), err) != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	observability.Ledger().RecordClaim(track.String(), amount)
	writeResult(w, req.ID, map[string]string{"amount": bigString(amount)})
}

func (s *Server) handleBuyout(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params buyoutParams
	if !decodeParams(w, req, &params) {
		return
	}
	pool, err := parseAddress(params.Pool)
	if err != nil {
		invalidParam(w, req, "pool", err)
		return
	}
	track, err := parseTrack(params.Track)
	if err != nil {
		invalidParam(w, req, "track", err)
		return
	}
	seller, err := parseAddress(params.Seller)
	if err != nil {
		invalidParam(w, req, "seller", err)
		return
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		invalidParam(w, req, "buyer", err)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		invalidParam(w, req, "amount", err)
		return
	}
	if err := s.authorize(r, seller); err != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	res, err := s.engine.Buyout(pool, track, seller, buyer, amount)
	if record("buyout", track.String(), err) != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	writeResult(w, req.ID, buyoutResult{
		Pool:       res.Pool.Hex(),
		Track:      res.Track.String(),
		Seller:     res.Seller.Hex(),
		Buyer:      res.Buyer.Hex(),
		Amount:     bigString(res.Amount),
		AutoClaim:  bigString(res.AutoClaim),
		PaidSeller: bigString(res.PaidSeller),
	})
}

func (s *Server) handleSetBuyoutLimit(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params buyoutLimitParams
	if !decodeParams(w, req, &params) {
		return
	}
	pool, err := parseAddress(params.Pool)
	if err != nil {
		invalidParam(w, req, "pool", err)
		return
	}
	track, err := parseTrack(params.Track)
	if err != nil {
		invalidParam(w, req, "track", err)
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		invalidParam(w, req, "caller", err)
		return
	}
	limit, err := parseAmount(params.Limit)
	if err != nil {
		invalidParam(w, req, "limit", err)
		return
	}
	if err := s.authorize(r, caller); err != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	err = s.engine.SetBuyoutLimit(pool, track, caller, limit)
	if record("set_buyout_limit", track.String(), err) != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"ok": true})
}

func (s *Server) handleGetPool(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolParams
	if !decodeParams(w, req, &params) {
		return
	}
	addr, err := parseAddress(params.Pool)
	if err != nil {
		invalidParam(w, req, "pool", err)
		return
	}
	pool, err := s.engine.Pool(addr)
	if err != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	writeResult(w, req.ID, s.poolResultFrom(pool))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params accountParams
	if !decodeParams(w, req, &params) {
		return
	}
	pool, err := parseAddress(params.Pool)
	if err != nil {
		invalidParam(w, req, "pool", err)
		return
	}
	addr, err := parseAddress(params.Address)
	if err != nil {
		invalidParam(w, req, "address", err)
		return
	}
	acc, err := s.engine.Account(pool, addr)
	if err != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	writeResult(w, req.ID, accountResultFrom(acc))
}

func (s *Server) handleGetActors(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params poolParams
	if !decodeParams(w, req, &params) {
		return
	}
	pool, err := parseAddress(params.Pool)
	if err != nil {
		invalidParam(w, req, "pool", err)
		return
	}
	actors, err := s.engine.Actors(pool)
	if err != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	writeResult(w, req.ID, addressStrings(actors))
}

func (s *Server) handlePending(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params trackParams
	if !decodeParams(w, req, &params) {
		return
	}
	pool, err := parseAddress(params.Pool)
	if err != nil {
		invalidParam(w, req, "pool", err)
		return
	}
	track, err := parseTrack(params.Track)
	if err != nil {
		invalidParam(w, req, "track", err)
		return
	}
	pending, err := s.engine.Pending(pool, track)
	if err != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"pending": bigString(pending)})
}

func (s *Server) handleListPools(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	pools, err := s.engine.Pools()
	if err != nil {
		s.writeLedgerError(w, req, err)
		return
	}
	writeResult(w, req.ID, addressStrings(pools))
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if s.journal == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeServerError, "event journal not configured", nil)
		return
	}
	var params eventsParams
	if len(req.Params) > 0 && !decodeParams(w, req, &params) {
		return
	}
	filter := journal.Filter{Type: strings.TrimSpace(params.Type), AfterSeq: params.AfterSeq, Limit: params.Limit}
	if strings.TrimSpace(params.Pool) != "" {
		pool, err := parseAddress(params.Pool)
		if err != nil {
			invalidParam(w, req, "pool", err)
			return
		}
		filter.Pool = pool.Hex()
	}
	records, err := s.journal.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("journal query failed", "error", err)
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to query events", nil)
		return
	}
	out := make([]eventResult, 0, len(records))
	for _, rec := range records {
		evt, err := rec.Event()
		if err != nil {
			s.logger.Warn("skipping undecodable journal record", "seq", rec.Seq, "error", err)
			continue
		}
		out = append(out, eventResult{
			Seq:        rec.Seq,
			ID:         rec.ID.String(),
			Type:       evt.Type,
			Pool:       rec.Pool,
			Attributes: evt.Attributes,
			CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleLastDistribution(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params trackParams
	if !decodeParams(w, req, &params) {
		return
	}
	pool, err := parseAddress(params.Pool)
	if err != nil {
		invalidParam(w, req, "pool", err)
		return
	}
	track, err := parseTrack(params.Track)
	if err != nil {
		invalidParam(w, req, "track", err)
		return
	}
	d, ok := s.LastDistribution(pool, track)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "no distribution recorded", nil)
		return
	}
	writeResult(w, req.ID, distributionResultFrom(d))
}
