package service

import "context"

type testTxRepos struct {
	knowledge     KnowledgeRepositoryInterface
	consultations ConsultationRepositoryInterface
}

func (t *testTxRepos) Knowledge() KnowledgeRepositoryInterface {
	return t.knowledge
}

func (t *testTxRepos) Consultations() ConsultationRepositoryInterface {
	return t.consultations
}

type testTxRunner struct {
	repos  TxRepositories
	called bool
}

func (t *testTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	t.called = true
	return fn(t.repos)
}
