package session

// ComputeShortlist derives the cards still in contention. Server-confirmed
// shortlist ids win when present; otherwise the locally yes/maybe voted
// cards; otherwise the winning card alone.
func ComputeShortlist(snap Snapshot, votes map[string]Vote) []Card {
	if len(snap.Shortlist) > 0 {
		shortlisted := make(map[string]struct{}, len(snap.Shortlist))
		for _, id := range snap.Shortlist {
			shortlisted[id] = struct{}{}
		}
		return filterCards(snap.Cards, func(card Card) bool {
			_, ok := shortlisted[card.ID]
			return ok
		})
	}

	if len(votes) > 0 {
		return filterCards(snap.Cards, func(card Card) bool {
			vote, ok := votes[card.ID]
			return ok && vote != VoteNo
		})
	}

	if index := snap.CardIndex(snap.WinnerID); index >= 0 {
		return []Card{snap.Cards[index]}
	}
	return nil
}

func filterCards(cards []Card, keep func(Card) bool) []Card {
	var result []Card
	for _, card := range cards {
		if keep(card) {
			result = append(result, card)
		}
	}
	return result
}
