package sim

import (
	"context"

	"github.com/DomeLiquid/lendcore/core"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

var ErrOverlappingJobs = errors.New("parallel jobs share an account or bank")

// Scheduler runs batches whose entity sets are disjoint at the same time.
// The processor never locks, so disjointness is checked here, before any
// job starts.
type Scheduler struct {
	host *Host
}

func NewScheduler(host *Host) *Scheduler {
	return &Scheduler{host: host}
}

type preparedJob struct {
	env      core.Env
	accounts core.AccountSet
	ixs      []core.Instruction
}

// RunParallel executes each job as one atomic batch. Jobs are independent:
// a failed job rolls back only itself, and its error cancels the jobs that
// have not started yet. Outcomes are returned in job order.
func (s *Scheduler) RunParallel(ctx context.Context, jobs []Job) ([]*core.Outcome, error) {
	if err := checkDisjoint(jobs); err != nil {
		return nil, err
	}

	prepared := make([]preparedJob, len(jobs))
	for i, job := range jobs {
		pj, err := s.prepare(job)
		if err != nil {
			return nil, errors.Wrapf(err, "job %d", i)
		}
		prepared[i] = pj
	}

	p := s.host.Processor()
	outcomes := make([]*core.Outcome, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	for i := range prepared {
		i := i
		job := prepared[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := p.ExecuteBatch(job.env, job.accounts, job.ixs)
			if err != nil {
				return errors.Wrapf(err, "job %d", i)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

func checkDisjoint(jobs []Job) error {
	accounts := make(map[string]int)
	banks := make(map[string]int)
	for i, job := range jobs {
		for _, a := range job.Accounts {
			if j, ok := accounts[a]; ok {
				return errors.Wrapf(ErrOverlappingJobs, "account %s in jobs %d and %d", a, j, i)
			}
			accounts[a] = i
		}
		for _, b := range job.Banks {
			if j, ok := banks[b]; ok {
				return errors.Wrapf(ErrOverlappingJobs, "bank %s in jobs %d and %d", b, j, i)
			}
			banks[b] = i
		}
	}
	return nil
}

// prepare resolves a job against the host. Every account an instruction
// names, and every bank those accounts hold, must be declared by the job.
func (s *Scheduler) prepare(job Job) (preparedJob, error) {
	if len(job.Banks) == 0 {
		return preparedJob{}, errors.New("job declares no banks")
	}
	env, err := s.host.Env(job.Banks...)
	if err != nil {
		return preparedJob{}, err
	}

	declared := make(core.AccountSet, len(job.Accounts))
	for _, name := range job.Accounts {
		a, err := s.host.Account(name)
		if err != nil {
			return preparedJob{}, err
		}
		declared[a.Id] = a
	}

	used, ixs, err := s.host.Instructions(job.Steps)
	if err != nil {
		return preparedJob{}, err
	}
	for id := range used {
		if _, ok := declared[id]; !ok {
			return preparedJob{}, errors.Errorf("account %s is not declared", s.host.Name(id))
		}
	}
	for _, a := range declared {
		for _, bankId := range a.ActiveBankIds() {
			if _, ok := env.Banks[bankId]; !ok {
				return preparedJob{}, errors.Errorf("account %s holds undeclared bank %s", s.host.Name(a.Id), s.host.Name(bankId))
			}
		}
	}
	for i, ix := range ixs {
		for _, bankId := range []uuid.UUID{ix.BankId, ix.AssetBankId, ix.LiabilityBankId} {
			if bankId == uuid.Nil {
				continue
			}
			if _, ok := env.Banks[bankId]; !ok {
				return preparedJob{}, errors.Errorf("instruction %d uses undeclared bank %s", i, s.host.Name(bankId))
			}
		}
	}

	return preparedJob{env: env, accounts: declared, ixs: ixs}, nil
}
