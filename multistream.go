package zrtpfilter

import "github.com/opd-ai/zrtpfilter/zrtp"

// multiStreamLink starts a slave stream once its master is secure.
type multiStreamLink struct {
	BaseObserver
	master *Filter
	slave  *Filter
}

// LinkMultiStream makes slave a multi-stream session of master. The slave
// must have been initialized with autoEnable false. When master enters the
// secure state its parameters are copied to slave, which is then enabled
// and started.
func LinkMultiStream(master, slave *Filter) {
	master.AddObserver(&multiStreamLink{master: master, slave: slave})
}

func (l *multiStreamLink) OnStatus(severity zrtp.Severity, subCode int) {
	if severity != zrtp.Info || subCode != zrtp.InfoSecureStateOn {
		return
	}
	if l.slave.Enabled() || !l.master.IsMultiStreamAvailable() {
		return
	}

	log := l.master.log("LinkMultiStream").WithField("slave", l.slave.Name())
	params := l.master.MultiStreamParams()
	if err := l.slave.SetMultiStreamParams(params); err != nil {
		log.WithError(err).Error("Cannot start multi-stream slave")
		return
	}
	l.slave.SetEnabled(true)
	if err := l.slave.Start(); err != nil {
		log.WithError(err).Error("Cannot start multi-stream slave")
		return
	}
	log.Info("Multi-stream slave started")
}
