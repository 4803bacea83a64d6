/**
 * Copyright 2025-present pAION Labs
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

const (
	// Balance queries
	queryGetBalance = `
		SELECT address, balance, locked_amount, total_earned, total_spent, version, updated_at
		FROM balances
		WHERE address = ?`

	queryInsertBalance = `
		INSERT INTO balances (address, balance, locked_amount, total_earned, total_spent, version)
		VALUES (?, '0', '0', '0', '0', 1)`

	queryUpdateBalance = `
		UPDATE balances
		SET balance = ?, locked_amount = ?, total_earned = ?, total_spent = ?,
		    version = version + 1, updated_at = ?
		WHERE address = ? AND version = ?`

	queryGetAllBalances = `
		SELECT balance, locked_amount, total_earned, total_spent
		FROM balances`

	queryListBalances = `
		SELECT address, balance, locked_amount, total_earned, total_spent, version, updated_at
		FROM balances
		WHERE balance != '0' OR locked_amount != '0'
		ORDER BY address`

	// Transaction queries
	queryInsertTransaction = `
		INSERT INTO transactions (
			id, user_address, transaction_type, amount, balance_before, balance_after,
			description, source_type, source_id, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransactionHistory = `
		SELECT id, user_address, transaction_type, amount, balance_before, balance_after,
		       description, source_type, source_id, metadata, created_at
		FROM transactions
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`

	queryCountTransactions = `
		SELECT COUNT(*)
		FROM transactions
		WHERE %s`

	// Proposal queries
	queryInsertProposal = `
		INSERT INTO proposals (
			id, creator_address, title, description, category, options, status,
			start_date, end_date, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetProposal = `
		SELECT id, creator_address, title, description, category, options, status,
		       start_date, end_date, metadata, created_at
		FROM proposals
		WHERE id = ?`

	queryCloseExpiredProposals = `
		UPDATE proposals
		SET status = 'completed'
		WHERE status = 'active' AND end_date <= ?
		RETURNING id, creator_address, title, description, category, options, status,
		          start_date, end_date, metadata, created_at`

	queryCancelProposal = `
		UPDATE proposals
		SET status = 'cancelled'
		WHERE id = ? AND status IN ('pending', 'active')`

	// Vote queries
	queryInsertVote = `
		INSERT INTO votes (id, proposal_id, voter_address, option, voting_power, reasoning, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryCountVoterVotes = `
		SELECT COUNT(*) FROM votes WHERE proposal_id = ? AND voter_address = ?`

	queryGetVote = `
		SELECT id, proposal_id, voter_address, option, voting_power, reasoning, created_at
		FROM votes
		WHERE proposal_id = ? AND voter_address = ?`

	queryTallyVotes = `
		SELECT option, COUNT(*), COALESCE(SUM(voting_power), 0)
		FROM votes
		WHERE proposal_id = ?
		GROUP BY option`
)
