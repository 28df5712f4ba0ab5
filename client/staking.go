package client

import (
	"fmt"
	"math/big"

	"nftmarket/core/types"
)

// stakeToken reads the staked token ID from the distributor's global state.
func (m *Market) stakeToken() (uint64, error) {
	global, ok := m.net.AppGlobalState(m.ids.Staking)
	if !ok {
		return 0, fmt.Errorf("%w: app %d", ErrUnknownApp, m.ids.Staking)
	}
	token := stateUint(global, "TK_ID")
	if token == 0 {
		return 0, fmt.Errorf("client: distributor has no staked token")
	}
	return token, nil
}

// Stake deposits amount of the staked token. The credited stake is net of the
// token transfer tax.
func (m *Market) Stake(staker types.Address, amount uint64) error {
	token, err := m.stakeToken()
	if err != nil {
		return err
	}
	group := types.Group{
		&types.Transaction{
			Type:          types.TxAssetTransfer,
			Sender:        staker,
			AssetReceiver: m.stakingAddr,
			AssetID:       token,
			AssetAmount:   amount,
			Fee:           m.fee(2),
		},
		&types.Transaction{
			Type:   types.TxAppCall,
			Sender: staker,
			AppID:  m.ids.Staking,
			Args:   [][]byte{[]byte("stake"), types.Uint64Bytes(amount)},
			Fee:    m.fee(2),
		},
	}
	return m.net.Submit(group)
}

// WithdrawStake returns amount of staked tokens to the staker.
func (m *Market) WithdrawStake(staker types.Address, amount uint64) error {
	group := types.Group{&types.Transaction{
		Type:   types.TxAppCall,
		Sender: staker,
		AppID:  m.ids.Staking,
		Args:   [][]byte{[]byte("withdraw"), types.Uint64Bytes(amount)},
		Fee:    m.fee(2),
	}}
	return m.net.Submit(group)
}

// ClaimRewards pays the staker's share of the current epoch pot. The first
// claim past the lock also rolls the epoch.
func (m *Market) ClaimRewards(staker types.Address) error {
	token, err := m.stakeToken()
	if err != nil {
		return err
	}
	group := types.Group{&types.Transaction{
		Type:          types.TxAppCall,
		Sender:        staker,
		AppID:         m.ids.Staking,
		Args:          [][]byte{[]byte("claim")},
		ForeignAssets: []uint64{token},
		Fee:           m.fee(1),
	}}
	return m.net.Submit(group)
}

// StakedBalance reads the staker's credited stake.
func (m *Market) StakedBalance(staker types.Address) *big.Int {
	local, ok := m.net.AppLocalState(m.ids.Staking, staker)
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).SetUint64(stateUint(local, "TA"))
}

// SetTimelock moves the epoch lock time; deployer only.
func (m *Market) SetTimelock(creator types.Address, lockTime uint64) error {
	group := types.Group{&types.Transaction{
		Type:   types.TxAppCall,
		Sender: creator,
		AppID:  m.ids.Staking,
		Args:   [][]byte{[]byte("set_timelock"), types.Uint64Bytes(lockTime)},
		Fee:    m.fee(1),
	}}
	return m.net.Submit(group)
}

// RolloverAccount zeroes one account's aggregate trading counters through the
// distributor; deployer only.
func (m *Market) RolloverAccount(creator, account types.Address) error {
	group := types.Group{&types.Transaction{
		Type:     types.TxAppCall,
		Sender:   creator,
		AppID:    m.ids.Staking,
		Args:     [][]byte{[]byte("rollover")},
		Accounts: []types.Address{account},
		Fee:      m.fee(1),
	}}
	return m.net.Submit(group)
}

// OptIntoStore opts an account into the accounting store so its settlements
// can be recorded.
func (m *Market) OptIntoStore(account types.Address) error {
	return m.optInApp(account, m.ids.Store)
}

// OptIntoStaking opts an account into the distributor before its first stake.
func (m *Market) OptIntoStaking(account types.Address) error {
	return m.optInApp(account, m.ids.Staking)
}

func (m *Market) optInApp(account types.Address, appID uint64) error {
	group := types.Group{&types.Transaction{
		Type:       types.TxAppCall,
		Sender:     account,
		AppID:      appID,
		OnComplete: types.OcOptIn,
		Fee:        m.fee(1),
	}}
	return m.net.Submit(group)
}
